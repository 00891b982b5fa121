package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

const maxBroadcastMessage = 500

// Severities accepted by the system broadcast endpoint.
var Severities = []string{"info", "warning", "critical"}

// Handler exposes the hub over HTTP.
type Handler struct {
	hub       *Hub
	broadcast bool
}

// NewHandler creates a new realtime handler.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// WithBroadcast mounts POST /realtime/broadcast. Operator use only.
func (h *Handler) WithBroadcast() *Handler {
	h.broadcast = true
	return h
}

// RegisterRoutes sets up realtime routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", gin.WrapF(h.hub.HandleWebSocket))
	r.GET("/realtime/stats", h.GetStats)
	if h.broadcast {
		r.POST("/realtime/broadcast", auth.RequireUser(), h.Broadcast)
	}
}

// GetStats handles GET /v1/realtime/stats
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// BroadcastRequest is the body of POST /v1/realtime/broadcast.
type BroadcastRequest struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// SystemAlert is the payload of a system:alert event.
type SystemAlert struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	From     string `json:"from"`
}

// Broadcast handles POST /v1/realtime/broadcast
func (h *Handler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if errs := validation.Validate(
		validation.Required("message", req.Message),
		validation.MaxLength("message", req.Message, maxBroadcastMessage),
		validation.OneOf("severity", req.Severity, Severities...),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}
	if req.Severity == "" {
		req.Severity = "info"
	}

	alert := SystemAlert{
		Message:  validation.SanitizeString(req.Message, maxBroadcastMessage),
		Severity: req.Severity,
		From:     auth.UserID(c),
	}
	h.hub.Broadcast(h.hub.NewEvent(EventSystemAlert, alert))
	logging.L(c.Request.Context()).Info("system alert broadcast", "from", alert.From, "severity", alert.Severity)

	c.JSON(http.StatusAccepted, gin.H{
		"success":    true,
		"recipients": h.hub.Stats()["connectedSessions"],
	})
}
