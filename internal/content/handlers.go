package content

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

// SenderChecker scores the optional sender of analyzed content.
// Implemented by *risk.Engine.
type SenderChecker interface {
	Check(ctx context.Context, raw, typeHint, userID string) (*risk.Result, error)
}

// Handler provides HTTP endpoints for content analysis.
type Handler struct {
	analyzer *Analyzer
	senders  SenderChecker
}

// NewHandler creates a new content handler. senders may be nil, in which
// case senderEntity is ignored.
func NewHandler(analyzer *Analyzer, senders SenderChecker) *Handler {
	return &Handler{analyzer: analyzer, senders: senders}
}

// RegisterRoutes sets up content routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/content/analyze", h.AnalyzeContent)
}

// AnalyzeRequest is the body of POST /v1/content/analyze.
type AnalyzeRequest struct {
	Content      string `json:"content"`
	ContentType  string `json:"contentType"`
	SenderEntity string `json:"senderEntity"`
}

// AnalyzeResponse is the body returned by AnalyzeContent.
type AnalyzeResponse struct {
	Success         bool         `json:"success"`
	ContentType     string       `json:"contentType,omitempty"`
	ContentAnalysis *Result      `json:"contentAnalysis"`
	EntityRisk      *risk.Result `json:"entityRisk,omitempty"`
	CombinedRisk    Combined     `json:"combinedRisk"`
}

// AnalyzeContent handles POST /v1/content/analyze
func (h *Handler) AnalyzeContent(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if errs := validation.Validate(
		validation.Required("content", req.Content),
		validation.MaxLength("content", req.Content, validation.MaxContentLength),
		validation.OneOf("contentType", req.ContentType, Types...),
		validation.MaxLength("senderEntity", req.SenderEntity, entity.MaxLength),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}
	req.Content = validation.SanitizeString(req.Content, validation.MaxContentLength)
	req.SenderEntity = validation.SanitizeString(req.SenderEntity, entity.MaxLength)

	analysis := h.analyzer.Analyze(req.Content)
	resp := AnalyzeResponse{
		Success:         true,
		ContentType:     req.ContentType,
		ContentAnalysis: analysis,
	}

	if req.SenderEntity != "" && h.senders != nil {
		sender, err := h.senders.Check(c.Request.Context(), req.SenderEntity, "", auth.UserID(c))
		if err != nil {
			c.JSON(faults.HTTPStatus(err), gin.H{
				"success": false,
				"error":   faults.Kind(err),
				"message": err.Error(),
			})
			return
		}
		resp.EntityRisk = sender
	}

	resp.CombinedRisk = Combine(analysis, resp.EntityRisk)
	c.JSON(http.StatusOK, resp)
}
