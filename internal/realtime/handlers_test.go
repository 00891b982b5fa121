package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
)

func setupRouter(h *Hub, broadcast bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(auth.ContextKeyUserID, u)
		}
		c.Next()
	})
	handler := NewHandler(h)
	if broadcast {
		handler.WithBroadcast()
	}
	handler.RegisterRoutes(r.Group("/v1"))
	return r
}

func postBroadcast(r *gin.Engine, body, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/v1/realtime/broadcast", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_BroadcastReachesEverySession(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a, err := h.Open("user-a")
	require.NoError(t, err)
	b, err := h.Open("user-b")
	require.NoError(t, err)

	r := setupRouter(h, true)
	w := postBroadcast(r, `{"message":"Scheduled maintenance at 02:00","severity":"warning"}`, "ops-1")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(2), resp["recipients"])

	for _, s := range []*Session{a, b} {
		ev := recv(t, s)
		assert.Equal(t, EventSystemAlert, ev.Type)

		var alert SystemAlert
		require.NoError(t, json.Unmarshal(ev.Data.(json.RawMessage), &alert))
		assert.Equal(t, SystemAlert{Message: "Scheduled maintenance at 02:00", Severity: "warning", From: "ops-1"}, alert)
	}
}

func TestHandler_BroadcastDefaultsSeverity(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	s, err := h.Open("user-a")
	require.NoError(t, err)

	w := postBroadcast(setupRouter(h, true), `{"message":"hello"}`, "ops-1")
	require.Equal(t, http.StatusAccepted, w.Code)

	var alert SystemAlert
	require.NoError(t, json.Unmarshal(recv(t, s).Data.(json.RawMessage), &alert))
	assert.Equal(t, "info", alert.Severity)
}

func TestHandler_BroadcastRequiresSession(t *testing.T) {
	w := postBroadcast(setupRouter(testHub(), true), `{"message":"hello"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_BroadcastValidation(t *testing.T) {
	r := setupRouter(testHub(), true)

	bodies := []string{
		`{"message":""}`,
		`{"message":"hi","severity":"panic"}`,
		`not json`,
	}
	for _, body := range bodies {
		w := postBroadcast(r, body, "ops-1")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHandler_BroadcastNotMountedByDefault(t *testing.T) {
	w := postBroadcast(setupRouter(testHub(), false), `{"message":"hello"}`, "ops-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetStats(t *testing.T) {
	h := testHub()
	_, err := h.Open("user-a")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	setupRouter(h, false).ServeHTTP(w, httptest.NewRequest("GET", "/v1/realtime/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["connectedSessions"])
}
