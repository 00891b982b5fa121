package content

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
)

type stubSenders struct {
	result *risk.Result
	err    error
	seen   string
}

func (s *stubSenders) Check(_ context.Context, raw, _, _ string) (*risk.Result, error) {
	s.seen = raw
	return s.result, s.err
}

func setupRouter(senders SenderChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewAnalyzer(), senders).RegisterRoutes(r.Group("/v1"))
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/v1/content/analyze", bytes.NewBufferString(body)))
	return w
}

func TestHandler_AnalyzeContentOnly(t *testing.T) {
	r := setupRouter(nil)

	w := post(r, `{"content":"This is urgent. Your bank account needs attention, click here.","contentType":"sms"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "sms", resp.ContentType)
	assert.Equal(t, 5, resp.ContentAnalysis.Score)
	assert.Nil(t, resp.EntityRisk)
	assert.Equal(t, Combined{Score: 5, RiskLevel: "low"}, resp.CombinedRisk)
}

func TestHandler_AnalyzeWithSender(t *testing.T) {
	senders := &stubSenders{result: &risk.Result{TargetEntity: "919876543210", Score: 6, RiskLevel: risk.LevelHighRisk}}
	r := setupRouter(senders)

	w := post(r, `{"content":"hello there","senderEntity":"+91 98765-43210"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.EntityRisk)
	assert.Equal(t, "+91 98765-43210", senders.seen)
	assert.Equal(t, Combined{Score: 6, RiskLevel: "high_risk"}, resp.CombinedRisk)
}

func TestHandler_SanitizesInput(t *testing.T) {
	senders := &stubSenders{result: &risk.Result{TargetEntity: "919876543210", RiskLevel: risk.LevelSafe}}
	r := setupRouter(senders)

	w := post(r, `{"content":"  hello\u0000 there  ","senderEntity":"  +91 98765\u000043210 "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+91 9876543210", senders.seen)
}

func TestHandler_SenderFailure(t *testing.T) {
	r := setupRouter(&stubSenders{err: faults.ErrTransientStore})

	w := post(r, `{"content":"hello","senderEntity":"x@y.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_Validation(t *testing.T) {
	r := setupRouter(nil)

	bodies := []string{
		`{"content":""}`,
		`{"content":"hi","contentType":"fax"}`,
		`{"content":"` + strings.Repeat("a", 10001) + `"}`,
		`not json`,
	}
	for _, body := range bodies {
		w := post(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}
