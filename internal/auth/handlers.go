package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides the development session endpoint.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new auth handler
func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// SessionRequest asks for a token for a user id.
type SessionRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// RegisterRoutes sets up auth routes. Only mounted in development.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/session", h.IssueSession)
}

// IssueSession handles POST /v1/auth/session
func (h *Handler) IssueSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": "userId is required",
		})
		return
	}

	token, expires, err := h.manager.Issue(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": "Failed to issue session",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"token":     token,
		"expiresAt": expires,
	})
}
