package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Milan-Sharma1/vsp-backend/internal/ids"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the whole token payload: subject, issued-at, expiry and a unique
// token id so two tokens minted in the same second never collide.
type Claims struct {
	jwt.RegisteredClaims
}

func (c Claims) UserID() string {
	return c.Subject
}

// TokenSigner mints and verifies HS512 tokens for one secret and lifetime.
// Access and refresh tokens use separate signers.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the signer that reads time from now.
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

func (s *TokenSigner) Sign(subject string) (string, Claims, error) {
	if len(s.secret) == 0 {
		return "", Claims{}, errors.New("token secret not configured")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm and expiry. Every failure wraps
// ErrInvalidToken.
func (s *TokenSigner) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken is the form in which refresh tokens are persisted.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
