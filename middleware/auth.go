package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stocks-simulator/auth"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"

	identityKey = "identity"
)

// Verifier turns a session token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Token extracts the session token from the Authorization header or the
// session cookie.
func Token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// Auth rejects requests without a valid session and stores the identity for
// the handlers.
func Auth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := Token(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Auth.
func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
