package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/cache"
	"github.com/Milan-Sharma1/vsp-backend/internal/config"
	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/middleware"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/security"
	"github.com/Milan-Sharma1/vsp-backend/internal/service"
	"github.com/Milan-Sharma1/vsp-backend/internal/session"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Accounts *service.AccountService
	Tokens   *service.TokenService
	Profiles *service.ProfileService
	Media    *service.MediaService
	Sessions *session.Authenticator
}

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	svc       Services
	pingDB    Pinger
	pingCache Pinger
}

// NewHandlerSet builds the repositories and services on top of the shared
// connections.
func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, rdb *redis.Client, store storage.BlobStore, releaser service.BlobReleaser, cfg *config.AppConfig) (HandlerSet, error) {
	hasher, err := security.NewPasswordHasher(cfg.Security.PasswordHasher, cfg.Security.BcryptCost)
	if err != nil {
		return HandlerSet{}, err
	}

	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	videoRepo := repository.NewVideoRepository(db)

	tokens := service.NewTokenService(userRepo, cfg.Security, log)
	media := service.NewMediaService(userRepo, store, releaser, cfg.Storage.MaxUploadBytes, log)

	svc := Services{
		Accounts: service.NewAccountService(userRepo, tokens, media, hasher, log),
		Tokens:   tokens,
		Profiles: service.NewProfileService(userRepo, subRepo, historyRepo, videoRepo, log),
		Media:    media,
		Sessions: session.NewAuthenticator(tokens, userRepo, log),
	}

	pingCache := func(ctx context.Context) error { return cache.Ping(ctx, rdb) }
	return New(log, cfg, svc, db.Ping, pingCache), nil
}

// New assembles a HandlerSet from ready services. Either pinger may be nil.
func New(log zerolog.Logger, cfg *config.AppConfig, svc Services, pingDB, pingCache Pinger) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		svc:       svc,
		pingDB:    pingDB,
		pingCache: pingCache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	users := v1.Group("/users")
	users.POST("/register", h.RegisterUser)
	users.POST("/login", h.Login)
	users.POST("/refresh-token", h.RefreshToken)

	protected := users.Group("")
	protected.Use(middleware.Auth(h.svc.Sessions))
	protected.POST("/logout", h.Logout)
	protected.POST("/change-password", h.ChangePassword)
	protected.GET("/current-user", h.CurrentUser)
	protected.PATCH("/account", h.UpdateAccount)
	protected.PATCH("/avatar", h.UpdateAvatar)
	protected.PATCH("/cover-image", h.UpdateCoverImage)
	protected.GET("/c/:username", h.ChannelProfile)
	protected.POST("/c/:username/subscription", h.Subscribe)
	protected.DELETE("/c/:username/subscription", h.Unsubscribe)
	protected.GET("/history", h.WatchHistory)
	protected.POST("/history/:videoId", h.RecordWatch)
}

type envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

type errorBody struct {
	Error   errs.Kind `json:"error"`
	Message string    `json:"message"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Data: data, Message: message})
}

// respondError renders err with the status of its kind. Causes stay in the
// logs; clients only see the kind and message.
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusOf(err)

	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.AbortWithStatusJSON(status, errorBody{Error: kind, Message: errs.MessageOf(err)})
}

func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindInvalidCredential, errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func currentUserID(c *gin.Context) (string, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return "", false
	}
	return identity.User.ID, true
}
