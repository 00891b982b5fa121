package notify

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

const maxDeviceTokens = 10

// Handler lets a user register the addresses notifications are sent to.
type Handler struct {
	contacts *MemoryContacts
}

// NewHandler creates a new notify handler.
func NewHandler(contacts *MemoryContacts) *Handler {
	return &Handler{contacts: contacts}
}

// RegisterRoutes sets up notify routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/notify/contact", auth.RequireUser(), h.GetContact)
	r.PUT("/notify/contact", auth.RequireUser(), h.SetContact)
}

// GetContact handles GET /v1/notify/contact
func (h *Handler) GetContact(c *gin.Context) {
	contact, _ := h.contacts.Contact(c.Request.Context(), auth.UserID(c))
	c.JSON(http.StatusOK, gin.H{"success": true, "contact": contact})
}

// SetContact handles PUT /v1/notify/contact
func (h *Handler) SetContact(c *gin.Context) {
	var req Contact
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	errs := validation.Validate(
		validation.MaxLength("phone", req.Phone, 20),
		validation.MaxLength("email", req.Email, 254),
	)
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		errs = append(errs, validation.ValidationError{Field: "email", Message: "must be an email address"})
	}
	if len(req.DeviceTokens) > maxDeviceTokens {
		errs = append(errs, validation.ValidationError{Field: "deviceTokens", Message: "too many device tokens"})
	}
	if len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	h.contacts.Set(auth.UserID(c), req)
	c.JSON(http.StatusOK, gin.H{"success": true, "contact": req})
}
