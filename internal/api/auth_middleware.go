// internal/api/auth_middleware.go
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yusukekikuta0509/projectKAIKA/internal/auth"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
)

const sessionIDKey = "session_id"

// bearerToken reads the Authorization header, falling back to the token query
// parameter for WebSocket upgrades where browsers cannot set headers.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// RequireSessionToken admits requests whose token was issued for the :id session.
func RequireSessionToken(tokens *auth.TokenService) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			rh.Unauthorized(c, "Authentication required")
			return
		}

		claims, err := tokens.Authorize(token, c.Param("id"))
		switch {
		case err == nil:
		case apperrors.IsForbiddenError(err):
			rh.Error(c, http.StatusForbidden, ErrorTokenMismatch, "Credentials belong to another session")
			return
		case apperrors.IsUnauthorizedError(err):
			rh.Error(c, http.StatusUnauthorized, ErrorTokenInvalid, "Invalid session credentials")
			return
		default:
			rh.FromError(c, err)
			return
		}

		c.Set(sessionIDKey, claims.SessionID)
		c.Next()
	}
}

// RequireAdmin guards process wide settings. Without an admin token they are
// open only in debug mode.
func RequireAdmin(adminToken string, debug bool) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		if adminToken == "" {
			if debug {
				c.Next()
				return
			}
			rh.Forbidden(c, "Tuning changes are disabled")
			return
		}

		token := bearerToken(c)
		if token == "" {
			rh.Unauthorized(c, "Admin token required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			rh.Forbidden(c, "Invalid admin token")
			return
		}
		c.Next()
	}
}

// SessionIDFromContext returns the session the request authenticated as.
func SessionIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(sessionIDKey)
	return id, id != ""
}
