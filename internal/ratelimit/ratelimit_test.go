package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, rps float64, burst int) (*Limiter, *clock) {
	t.Helper()
	l := New(Config{RequestsPerSecond: rps, BurstSize: burst, IdleTTL: time.Minute, CleanupInterval: time.Hour})
	t.Cleanup(l.Stop)
	c := &clock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	l.now = c.Now
	return l, c
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("a"))

	c.Advance(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_IndependentClients(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, c := newTestLimiter(t, 1, 1)
	l.Allow("a")
	c.Advance(30 * time.Second)
	l.Allow("b")
	c.Advance(45 * time.Second)

	l.evictIdle()
	assert.Equal(t, 1, l.Len(), "only the recently seen client remains")
}

func TestLimiter_StopIdempotent(t *testing.T) {
	l := New(DefaultConfig())
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newTestLimiter(t, 1, 1)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(auth.ContextKeyUserID, u)
		}
		c.Next()
	}, l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/ping", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("").Code)
	w := call("")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Authenticated users get their own bucket.
	assert.Equal(t, http.StatusOK, call("user-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("user-1").Code)
}
