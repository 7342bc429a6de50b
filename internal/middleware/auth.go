package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milan-Sharma1/vsp-backend/internal/session"
)

const CurrentUserKey = "current_user"

// ginSource exposes a gin request as a session.TokenSource.
type ginSource struct {
	c *gin.Context
}

func (s ginSource) Cookie(name string) (string, bool) {
	v, err := s.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return v, true
}

func (s ginSource) Header(name string) string {
	return s.c.GetHeader(name)
}

// TokenSource adapts c for callers outside the middleware chain.
func TokenSource(c *gin.Context) session.TokenSource {
	return ginSource{c: c}
}

var unauthorizedBody = gin.H{"error": "unauthorized", "message": "unauthorized request"}

// Auth rejects requests without a valid access token. Every rejection gets
// the same 401 body.
func Auth(auth *session.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authenticate(c.Request.Context(), ginSource{c: c})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorizedBody)
			return
		}

		c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), identity))
		c.Set(CurrentUserKey, identity.User)

		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Auth.
func CurrentIdentity(c *gin.Context) (session.Identity, bool) {
	return session.FromContext(c.Request.Context())
}
