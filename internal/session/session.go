// Package session turns a request's credentials into an authenticated
// identity. It knows nothing about the HTTP library in use: transports adapt
// their request type to TokenSource.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/security"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// ErrUnauthorized is the single failure every authentication path reports.
var ErrUnauthorized = errs.Unauthorized("unauthorized request", nil)

type TokenSource interface {
	Cookie(name string) (string, bool)
	Header(name string) string
}

// ExtractAccessToken prefers the access cookie and falls back to a bearer
// Authorization header.
func ExtractAccessToken(src TokenSource) string {
	if v, ok := src.Cookie(AccessCookie); ok && v != "" {
		return v
	}
	return bearer(src.Header("Authorization"))
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type Identity struct {
	User    models.PublicUser
	TokenID string
}

type AccessVerifier interface {
	VerifyAccess(token string) (*security.Claims, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type Authenticator struct {
	tokens AccessVerifier
	users  UserLoader
	log    zerolog.Logger
}

func NewAuthenticator(tokens AccessVerifier, users UserLoader, log zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// Authenticate resolves the request's access token to a live user. All
// failures return ErrUnauthorized; the cause is logged at debug level only.
func (a *Authenticator) Authenticate(ctx context.Context, src TokenSource) (Identity, error) {
	token := ExtractAccessToken(src)
	if token == "" {
		a.log.Debug().Msg("no access token")
		return Identity{}, ErrUnauthorized
	}

	claims, err := a.tokens.VerifyAccess(token)
	if err != nil {
		a.log.Debug().Err(err).Msg("access token rejected")
		return Identity{}, ErrUnauthorized
	}

	user, err := a.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			a.log.Debug().Str("user_id", claims.UserID()).Msg("token subject no longer exists")
		} else {
			a.log.Warn().Err(err).Str("user_id", claims.UserID()).Msg("load session user failed")
		}
		return Identity{}, ErrUnauthorized
	}

	return Identity{User: user.Public(), TokenID: claims.ID}, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
