package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/service"
	"github.com/Milan-Sharma1/vsp-backend/internal/session"
)

type registerRequest struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	FullName string `form:"fullName"`
	Password string `form:"password"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errs.Validation("invalid registration form"))
		return
	}

	avatar, err := formUpload(c, "avatar")
	if err != nil {
		respondError(c, err)
		return
	}
	cover, err := formUpload(c, "coverImage")
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.svc.Accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Avatar:   avatar,
		Cover:    cover,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, user, "user registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("invalid login request"))
		return
	}

	user, pair, err := h.svc.Accounts.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "user logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates the pair. The presented token comes from the cookie,
// or from the JSON body for clients that do not keep cookies.
func (h HandlerSet) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(session.RefreshCookie)
	if token == "" && c.Request.ContentLength != 0 {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, errs.Validation("invalid refresh request"))
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.svc.Tokens.Renew(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "access token refreshed")
}

func (h HandlerSet) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	if err := h.svc.Accounts.Logout(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	h.clearSessionCookies(c)
	respond(c, http.StatusOK, nil, "user logged out")
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, session.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errs.Validation("invalid change password request"))
		return
	}

	err := h.svc.Accounts.ChangePassword(c.Request.Context(), userID, service.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, nil, "password changed successfully")
}

func (h HandlerSet) setSessionCookies(c *gin.Context, pair service.TokenPair) {
	h.setCookie(c, session.AccessCookie, pair.AccessToken, h.svc.Tokens.AccessTTL())
	h.setCookie(c, session.RefreshCookie, pair.RefreshToken, h.svc.Tokens.RefreshTTL())
}

func (h HandlerSet) clearSessionCookies(c *gin.Context) {
	h.setCookie(c, session.AccessCookie, "", -time.Second)
	h.setCookie(c, session.RefreshCookie, "", -time.Second)
}

func (h HandlerSet) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", h.cfg.Security.CookieDomain, h.cfg.Security.CookieSecure, true)
}

// formUpload returns nil when the field is absent.
func formUpload(c *gin.Context, field string) (*service.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, errs.Validation("upload is too large")
		}
		return nil, errs.Validation("invalid multipart form")
	}
	return service.UploadFromFileHeader(fh), nil
}
