package risk

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

// Handler provides HTTP endpoints for entity risk checks.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new risk handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/risk/check", h.CheckRisk)
}

// CheckRequest is the body of POST /v1/risk/check.
type CheckRequest struct {
	Entity     string `json:"entity"`
	EntityType string `json:"entityType"`
}

// CheckRisk handles POST /v1/risk/check
func (h *Handler) CheckRisk(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if errs := validation.Validate(
		validation.Required("entity", req.Entity),
		validation.MaxLength("entity", req.Entity, entity.MaxLength),
		validation.OneOf("entityType", req.EntityType,
			string(entity.TypePhone), string(entity.TypeEmail), string(entity.TypeUPI), string(entity.TypeUnknown)),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	result, err := h.engine.Check(c.Request.Context(), req.Entity, req.EntityType, auth.UserID(c))
	if err != nil {
		c.JSON(faults.HTTPStatus(err), gin.H{
			"success": false,
			"error":   faults.Kind(err),
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
