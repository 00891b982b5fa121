package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	h := NewHandlers(NewClient(Config{APIURL: ts.URL, SessionToken: "tok_test"}))
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ============================================================
// Client tests
// ============================================================

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL, SessionToken: "secret"}).PendingAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	gotAuth := "unset"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).CheckRisk(context.Background(), "9876543210", "")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "unauthorized",
			"message": "a session is required",
		})
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).PendingAlerts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "a session is required")
}

func TestClient_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).CheckRisk(context.Background(), "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_AcknowledgeEscapesID(t *testing.T) {
	var gotPath string
	var body map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL}).AcknowledgeAlert(context.Background(), "alrt/1", "blocked")
	require.NoError(t, err)
	assert.Equal(t, "/v1/alerts/alrt%2F1/acknowledge", gotPath)
	assert.Equal(t, "blocked", body["action"])
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleCheckEntityRisk(t *testing.T) {
	var got map[string]string
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/risk/check", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result": map[string]any{
				"targetEntity": "919876543210",
				"entityType":   "phone",
				"score":        7,
				"riskLevel":    "high_risk",
				"totalReports": 7,
				"topCategory":  "Phishing",
			},
		})
	}))
	defer done()

	res, err := h.HandleCheckEntityRisk(context.Background(), makeRequest(map[string]any{
		"entity": "+91 98765 43210", "entity_type": "phone",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "high_risk")
	assert.Contains(t, text, "mostly Phishing")
	assert.Equal(t, "+91 98765 43210", got["entity"])
	assert.Equal(t, "phone", got["entityType"])
}

func TestHandleCheckEntityRisk_Degraded(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"targetEntity": "k", "riskLevel": "safe", "degraded": true},
		})
	}))
	defer done()

	res, err := h.HandleCheckEntityRisk(context.Background(), makeRequest(map[string]any{"entity": "k"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "unavailable")
}

func TestHandleCheckEntityRisk_MissingEntity(t *testing.T) {
	h := NewHandlers(NewClient(Config{APIURL: "http://127.0.0.1:0"}))
	res, err := h.HandleCheckEntityRisk(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "entity is required")
}

func TestHandleAnalyzeContent(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/content/analyze", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"contentAnalysis": map[string]any{
				"isSuspicious": false,
				"score":        5,
				"riskLevel":    "low",
				"findings": []map[string]any{
					{"category": "urgency", "matchedKeywords": []string{"urgent"}, "score": 1},
					{"category": "excessive_caps", "score": 2},
				},
			},
			"entityRisk":   map[string]any{"targetEntity": "9876543210", "riskLevel": "safe", "totalReports": 0},
			"combinedRisk": map[string]any{"score": 5, "riskLevel": "low"},
		})
	}))
	defer done()

	res, err := h.HandleAnalyzeContent(context.Background(), makeRequest(map[string]any{
		"content": "urgent", "sender_entity": "9876543210",
	}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Overall risk: low (score 5)")
	assert.Contains(t, text, "- urgency: urgent")
	assert.Contains(t, text, "- excessive_caps")
	assert.Contains(t, text, "Sender: 9876543210 is safe")
}

func TestHandleListPendingAlerts(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"alerts": []map[string]any{{
				"id": "alrt_1", "alertType": "THREAT_ALERT", "fromEntity": "919876543210",
				"riskLevel": "high_risk", "priority": "critical", "message": "Do not share codes.",
			}},
			"count": 1,
		})
	}))
	defer done()

	res, err := h.HandleListPendingAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "1 pending alert(s)")
	assert.Contains(t, text, "alrt_1 [high_risk, critical] from 919876543210")
}

func TestHandleListPendingAlerts_Empty(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "alerts": []any{}, "count": 0})
	}))
	defer done()

	res, err := h.HandleListPendingAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No pending alerts.", resultText(t, res))
}

func TestHandleAcknowledgeAlert(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found", "message": "alert not found"})
	}))
	defer done()

	res, err := h.HandleAcknowledgeAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alrt_x", "action": "blocked",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "alert not found")

	res, err = h.HandleAcknowledgeAlert(context.Background(), makeRequest(map[string]any{"alert_id": "alrt_x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleProtectEntity(t *testing.T) {
	h, done := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/protection", r.URL.Path)
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":    true,
			"protection": map[string]any{"entity": "pay.me@upi", "alertTypes": []string{"THREAT_ALERT"}},
		})
	}))
	defer done()

	res, err := h.HandleProtectEntity(context.Background(), makeRequest(map[string]any{"entity": "Pay.Me@UPI"}))
	require.NoError(t, err)
	assert.Equal(t, "Now watching pay.me@upi for THREAT_ALERT.", resultText(t, res))
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer(Config{APIURL: "http://localhost:8080"}))
}
