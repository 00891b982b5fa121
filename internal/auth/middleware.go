package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
)

// ContextKeyUserID is the gin context key holding the authenticated user id.
const ContextKeyUserID = "authUserId"

// Middleware validates an optional bearer token. Requests without a valid
// token continue anonymously.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if claims, err := m.Validate(header); err == nil {
				c.Set(ContextKeyUserID, claims.UserID())
				c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), claims.UserID()))
			}
		}
		c.Next()
	}
}

// RequireUser rejects requests that Middleware did not authenticate.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "Session token required. Include 'Authorization: Bearer <token>' header.",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
