package risk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(e).RegisterRoutes(r.Group("/v1"))
	return r
}

func TestHandler_CheckRisk(t *testing.T) {
	store := NewMemoryStore()
	store.Add(Report{TargetEntity: "foo@bar.com", Category: CategoryPhishing, CreatedAt: testNow.Add(-time.Hour), IsActive: true})
	r := setupRouter(newTestEngine(store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/v1/risk/check", bytes.NewBufferString(`{"entity":" Foo@Bar.COM "}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Result  Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "foo@bar.com", resp.Result.TargetEntity)
	assert.Equal(t, 3, resp.Result.Score)
	assert.Equal(t, LevelSuspicious, resp.Result.RiskLevel)
	assert.Equal(t, 1, resp.Result.TotalReports)
}

func TestHandler_CheckRiskValidation(t *testing.T) {
	r := setupRouter(newTestEngine(NewMemoryStore()))

	for _, body := range []string{`{"entity":""}`, `{"entity":"123","entityType":"fax"}`, `nope`} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/v1/risk/check", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
