package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEmpty(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("postgres", Ping("postgres", func(context.Context) error { return nil }))
	r.Register("redis", Ping("redis", func(context.Context) error { return errors.New("connection refused") }))

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, Status{Name: "postgres", Healthy: true}, statuses[0])
	assert.Equal(t, "connection refused", statuses[1].Detail)
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry()
	r.timeout = 20 * time.Millisecond
	r.Register("nats", func(ctx context.Context) Status {
		<-ctx.Done()
		return Status{Healthy: false, Detail: ctx.Err().Error()}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "nats", statuses[0].Name, "registry fills a missing name")
}

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	failing := false
	reg.Register("postgres", Ping("postgres", func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}))
	router := gin.New()
	reg.RegisterRoutes(router, "test")

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	failing = true
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code, "liveness ignores dependencies")
}
