package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/alerts"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/content"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckEntityRisk scores an identifier.
func (h *Handlers) HandleCheckEntityRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity := req.GetString("entity", "")
	if strings.TrimSpace(entity) == "" {
		return mcp.NewToolResultError("entity is required"), nil
	}

	raw, err := h.client.CheckRisk(ctx, entity, req.GetString("entity_type", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Risk check failed: %v", err)), nil
	}

	var resp struct {
		Result risk.Result `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk result: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRisk(&resp.Result)), nil
}

// HandleAnalyzeContent scans a message.
func (h *Handlers) HandleAnalyzeContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("content", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("content is required"), nil
	}

	raw, err := h.client.AnalyzeContent(ctx, text, req.GetString("content_type", ""), req.GetString("sender_entity", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Content analysis failed: %v", err)), nil
	}

	var resp content.AnalyzeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnalysis(&resp)), nil
}

// HandleListPendingAlerts lists the session user's pending alerts.
func (h *Handlers) HandleListPendingAlerts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.PendingAlerts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	var resp struct {
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}
	if len(resp.Alerts) == 0 {
		return mcp.NewToolResultText("No pending alerts."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d pending alert(s):\n", len(resp.Alerts))
	for _, a := range resp.Alerts {
		fmt.Fprintf(&sb, "\n- %s [%s, %s] from %s\n  %s\n", a.ID, a.RiskLevel, a.Priority, a.FromEntity, a.Message)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleAcknowledgeAlert records a decision on a pending alert.
func (h *Handlers) HandleAcknowledgeAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alertID := req.GetString("alert_id", "")
	action := req.GetString("action", "")
	if alertID == "" || action == "" {
		return mcp.NewToolResultError("alert_id and action are required"), nil
	}

	if _, err := h.client.AcknowledgeAlert(ctx, alertID, action); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to acknowledge alert: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Alert %s marked as %s.", alertID, action)), nil
}

// HandleProtectEntity watches an identifier for the session user.
func (h *Handlers) HandleProtectEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity := req.GetString("entity", "")
	if strings.TrimSpace(entity) == "" {
		return mcp.NewToolResultError("entity is required"), nil
	}

	raw, err := h.client.Protect(ctx, entity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to protect entity: %v", err)), nil
	}

	var resp struct {
		Protection alerts.Protection `json:"protection"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Protection.Entity == "" {
		return mcp.NewToolResultText("Protection enabled."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Now watching %s for %s.",
		resp.Protection.Entity, strings.Join(resp.Protection.AlertTypes, ", "))), nil
}

func formatRisk(r *risk.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entity: %s (%s)\n", r.TargetEntity, r.EntityType)
	fmt.Fprintf(&sb, "Risk: %s (score %d)\n", r.RiskLevel, r.Score)
	fmt.Fprintf(&sb, "Reports: %d", r.TotalReports)
	if r.TopCategory != "" {
		fmt.Fprintf(&sb, ", mostly %s", r.TopCategory)
	}
	if r.Degraded {
		sb.WriteString("\nWarning: report history was unavailable, so this result may understate the risk.")
	}
	return sb.String()
}

func formatAnalysis(resp *content.AnalyzeResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall risk: %s (score %d)\n", resp.CombinedRisk.RiskLevel, resp.CombinedRisk.Score)
	if a := resp.ContentAnalysis; a != nil {
		fmt.Fprintf(&sb, "Message: %s (score %d)\n", a.RiskLevel, a.Score)
		for _, f := range a.Findings {
			if len(f.MatchedKeywords) > 0 {
				fmt.Fprintf(&sb, "- %s: %s\n", f.Category, strings.Join(f.MatchedKeywords, ", "))
			} else {
				fmt.Fprintf(&sb, "- %s\n", f.Category)
			}
		}
	}
	if r := resp.EntityRisk; r != nil {
		fmt.Fprintf(&sb, "Sender: %s is %s with %d report(s)\n", r.TargetEntity, r.RiskLevel, r.TotalReports)
	}
	return strings.TrimRight(sb.String(), "\n")
}
