package middleware

import (
	"net/http"
	"strings"

	"hostwatch/internal/models"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
)

const sessionKey = "hostwatch.session"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// RequireSession rejects requests without a live session and stores the
// session in the context for handlers.
func RequireSession(auth *services.SessionAuthenticator, sl *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			sl.LogFailedAuth(c.ClientIP(), "missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "must be authenticated"})
			return
		}

		session, ok := auth.Session(token)
		if !ok {
			sl.LogFailedAuth(c.ClientIP(), "invalid or expired session")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// CurrentSession returns the session stored by RequireSession
func CurrentSession(c *gin.Context) (models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return models.Session{}, false
	}
	s, ok := v.(models.Session)
	return s, ok
}
