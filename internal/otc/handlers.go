package otc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

// DeliveryNotifier is told when a code was issued on behalf of a signed-in
// user, so the user's live channels can be informed. It never sees the code.
type DeliveryNotifier interface {
	CodeSent(ctx context.Context, userID string, expiresInMinutes int)
}

// Handler provides HTTP endpoints for one-time codes.
type Handler struct {
	service  *Service
	notifier DeliveryNotifier
}

// NewHandler creates a new OTC handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WithNotifier adds a delivery notifier.
func (h *Handler) WithNotifier(n DeliveryNotifier) *Handler {
	h.notifier = n
	return h
}

// RegisterRoutes sets up OTC routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/otc/generate", h.Generate)
	r.POST("/otc/verify", h.Verify)
	r.POST("/otc/invalidate", h.Invalidate)
}

// KeyRequest names an identifier/purpose pair.
type KeyRequest struct {
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
}

// VerifyRequest carries a candidate code.
type VerifyRequest struct {
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	Code       string `json:"code"`
}

// Generate handles POST /v1/otc/generate
func (h *Handler) Generate(c *gin.Context) {
	var req KeyRequest
	if !bindKey(c, &req) {
		return
	}

	issued, err := h.service.Generate(c.Request.Context(), req.Identifier, req.Purpose)
	if err != nil {
		var cd *CooldownError
		if errors.As(err, &cd) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "cooldown",
				"message":     "Please wait before requesting a new code",
				"waitSeconds": cd.WaitSeconds(),
			})
			return
		}
		h.fail(c, err)
		return
	}

	if userID := auth.UserID(c); userID != "" && h.notifier != nil {
		h.notifier.CodeSent(c.Request.Context(), userID, issued.ExpiresInMinutes)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"code":             issued.Code,
		"expiresInMinutes": issued.ExpiresInMinutes,
		"expiresAt":        issued.ExpiresAt,
	})
}

// Verify handles POST /v1/otc/verify
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	req.Purpose = normalizePurpose(req.Purpose)
	if errs := validation.Validate(
		validation.Required("identifier", req.Identifier),
		validation.MaxLength("identifier", req.Identifier, entity.MaxLength),
		validation.Required("purpose", req.Purpose),
		validation.Purpose("purpose", req.Purpose),
		validation.Required("code", req.Code),
		validation.Digits("code", req.Code),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	err := h.service.Verify(c.Request.Context(), req.Identifier, req.Purpose, req.Code)
	if err != nil {
		var ic *InvalidCodeError
		if errors.As(err, &ic) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":           false,
				"error":             "invalid",
				"message":           "Invalid code",
				"remainingAttempts": ic.Remaining,
			})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Invalidate handles POST /v1/otc/invalidate
func (h *Handler) Invalidate(c *gin.Context) {
	var req KeyRequest
	if !bindKey(c, &req) {
		return
	}
	if err := h.service.Invalidate(c.Request.Context(), req.Identifier, req.Purpose); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := faults.HTTPStatus(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		logging.L(c.Request.Context()).Error("otc request failed", "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   Reason(err),
		"message": publicMessage(err),
	})
}

func publicMessage(err error) string {
	switch Reason(err) {
	case "not_found":
		return "No active code for this identifier"
	case "already_used":
		return "Code has already been used"
	case "expired":
		return "Code has expired"
	case "max_attempts":
		return "Too many attempts, request a new code"
	case "validation_error":
		return err.Error()
	default:
		return "One-time code service unavailable"
	}
}

func bindKey(c *gin.Context, req *KeyRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		invalidBody(c)
		return false
	}
	req.Purpose = normalizePurpose(req.Purpose)
	if errs := validation.Validate(
		validation.Required("identifier", req.Identifier),
		validation.MaxLength("identifier", req.Identifier, entity.MaxLength),
		validation.Required("purpose", req.Purpose),
		validation.Purpose("purpose", req.Purpose),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return false
	}
	return true
}

// normalizePurpose folds the label the same way the service keys records.
func normalizePurpose(purpose string) string {
	return strings.ToLower(strings.TrimSpace(purpose))
}

func invalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "invalid_request",
		"message": "Invalid request body",
	})
}
