package alerts

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

const maxHistoryLimit = DefaultHistoryCap

// Handler provides HTTP endpoints for alerts and protection registrations.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new alerts handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes sets up alert routes. Every route requires a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("", auth.RequireUser())
	g.GET("/alerts/pending", h.ListPending)
	g.GET("/alerts/history", h.ListHistory)
	g.POST("/alerts/:alertId/acknowledge", h.AcknowledgeAlert)

	g.GET("/protection", h.ListProtections)
	g.POST("/protection", h.Protect)
	g.DELETE("/protection", h.Unprotect)
}

func fail(c *gin.Context, err error) {
	c.JSON(faults.HTTPStatus(err), gin.H{
		"success": false,
		"error":   faults.Kind(err),
		"message": err.Error(),
	})
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "invalid_request",
		"message": "Invalid request body",
	})
}

// ListPending handles GET /v1/alerts/pending
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.dispatcher.Pending(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": list, "count": len(list)})
}

// ListHistory handles GET /v1/alerts/history
func (h *Handler) ListHistory(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			validation.Abort(c, validation.ValidationErrors{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	list, err := h.dispatcher.History(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts": list, "count": len(list)})
}

// AcknowledgeRequest is the body of POST /v1/alerts/:alertId/acknowledge.
type AcknowledgeRequest struct {
	Action string `json:"action"`
}

// AcknowledgeAlert handles POST /v1/alerts/:alertId/acknowledge
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if errs := validation.Validate(
		validation.Required("action", req.Action),
		validation.OneOf("action", req.Action, Actions...),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	a, err := h.dispatcher.Acknowledge(c.Request.Context(), auth.UserID(c), c.Param("alertId"), req.Action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alert": a})
}

// ProtectRequest is the body of POST and DELETE /v1/protection.
type ProtectRequest struct {
	Entity     string   `json:"entity"`
	AlertTypes []string `json:"alertTypes"`
}

// ListProtections handles GET /v1/protection
func (h *Handler) ListProtections(c *gin.Context) {
	list, err := h.dispatcher.Protections(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []Protection{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "protections": list})
}

// Protect handles POST /v1/protection
func (h *Handler) Protect(c *gin.Context) {
	var req ProtectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if errs := validation.Validate(
		validation.Required("entity", req.Entity),
		validation.MaxLength("entity", req.Entity, entity.MaxLength),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	p, err := h.dispatcher.Protect(c.Request.Context(), auth.UserID(c), req.Entity, req.AlertTypes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "protection": p})
}

// Unprotect handles DELETE /v1/protection
func (h *Handler) Unprotect(c *gin.Context) {
	var req ProtectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if errs := validation.Validate(validation.Required("entity", req.Entity)); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	if err := h.dispatcher.Unprotect(c.Request.Context(), auth.UserID(c), req.Entity); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
