package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milan-Sharma1/vsp-backend/internal/session"
)

func (h HandlerSet) ChannelProfile(c *gin.Context) {
	viewerID, _ := currentUserID(c)

	profile, err := h.svc.Profiles.GetChannelProfile(c.Request.Context(), c.Param("username"), viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile, "channel fetched")
}

type subscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
	Changed    bool `json:"changed"`
}

func (h HandlerSet) Subscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	created, err := h.svc.Profiles.Subscribe(c.Request.Context(), userID, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, subscriptionResponse{Subscribed: true, Changed: created}, "subscribed")
}

func (h HandlerSet) Unsubscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	removed, err := h.svc.Profiles.Unsubscribe(c.Request.Context(), userID, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, subscriptionResponse{Subscribed: false, Changed: removed}, "unsubscribed")
}

func (h HandlerSet) WatchHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	entries, err := h.svc.Profiles.GetWatchHistory(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, entries, "watch history fetched")
}

func (h HandlerSet) RecordWatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	item, err := h.svc.Profiles.RecordWatch(c.Request.Context(), userID, c.Param("videoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, item, "added to watch history")
}
