package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/middleware"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/service"
	"github.com/Milan-Sharma1/vsp-backend/internal/session"
)

func (h HandlerSet) CurrentUser(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}
	respond(c, http.StatusOK, identity.User, "current user fetched")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h HandlerSet) UpdateAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("invalid account update"))
		return
	}

	user, err := h.svc.Accounts.UpdateAccount(c.Request.Context(), userID, service.UpdateAccountInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, "account details updated")
}

func (h HandlerSet) UpdateAvatar(c *gin.Context) {
	h.updateMedia(c, models.SlotAvatar, "avatar", "avatar updated")
}

func (h HandlerSet) UpdateCoverImage(c *gin.Context) {
	h.updateMedia(c, models.SlotCover, "coverImage", "cover image updated")
}

func (h HandlerSet) updateMedia(c *gin.Context, slot models.MediaSlot, field, message string) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	upload, err := formUpload(c, field)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.svc.Media.Update(c.Request.Context(), userID, slot, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, message)
}
