package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/security"
)

type TokenPair struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type refreshStore interface {
	SetRefreshTokenHash(ctx context.Context, id string, hash []byte) error
	SwapRefreshTokenHash(ctx context.Context, id string, expected, next []byte) (bool, error)
}

// TokenService issues, rotates and revokes session token pairs. The user row
// holds the hash of the single refresh token that is currently valid.
type TokenService struct {
	users   refreshStore
	access  *security.TokenSigner
	refresh *security.TokenSigner
	log     zerolog.Logger
}

func NewTokenService(users refreshStore, cfg config.SecurityConfig, log zerolog.Logger) *TokenService {
	return &TokenService{
		users:   users,
		access:  security.NewTokenSigner(cfg.JWTAccessSecret, cfg.JWTAccessTTL),
		refresh: security.NewTokenSigner(cfg.JWTRefreshSecret, cfg.JWTRefreshTTL),
		log:     log,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.access.TTL() }
func (s *TokenService) RefreshTTL() time.Duration { return s.refresh.TTL() }

// IssuePair signs a fresh pair and makes its refresh token the only valid one
// for the user.
func (s *TokenService) IssuePair(ctx context.Context, userID string) (TokenPair, error) {
	pair, err := s.sign(userID)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.users.SetRefreshTokenHash(ctx, userID, security.HashToken(pair.RefreshToken)); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, errs.Unauthorized("unauthorized request", err)
		}
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

func (s *TokenService) VerifyAccess(token string) (*security.Claims, error) {
	claims, err := s.access.Parse(token)
	if err != nil {
		return nil, errs.Unauthorized("invalid access token", err)
	}
	return claims, nil
}

func (s *TokenService) VerifyRefresh(token string) (*security.Claims, error) {
	claims, err := s.refresh.Parse(token)
	if err != nil {
		return nil, errs.Unauthorized("invalid refresh token", err)
	}
	return claims, nil
}

// Renew exchanges a valid refresh token for a new pair. The swap succeeds
// only while the presented token is still the stored one, so a token can be
// renewed at most once and never after Revoke.
func (s *TokenService) Renew(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, errs.Unauthorized("unauthorized request", nil)
	}

	claims, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.sign(claims.UserID())
	if err != nil {
		return TokenPair{}, err
	}

	swapped, err := s.users.SwapRefreshTokenHash(ctx,
		claims.UserID(),
		security.HashToken(refreshToken),
		security.HashToken(pair.RefreshToken),
	)
	if err != nil {
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		s.log.Debug().Str("user_id", claims.UserID()).Str("jti", claims.ID).Msg("refresh token reuse or revoked")
		return TokenPair{}, errs.Unauthorized("refresh token is expired or used", nil)
	}
	return pair, nil
}

// Revoke invalidates the user's refresh token. Access tokens stay valid
// until they expire.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	err := s.users.SetRefreshTokenHash(ctx, userID, nil)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) sign(userID string) (TokenPair, error) {
	access, accessClaims, err := s.access.Sign(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshClaims, err := s.refresh.Sign(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		UserID:           userID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
