// Package ratelimit provides per-client token-bucket rate limiting for the
// Nexora API.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

// Config configures rate limiting.
type Config struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64
	// BurstSize allows brief bursts above the rate.
	BurstSize int
	// IdleTTL evicts clients that have not been seen for this long.
	IdleTTL time.Duration
	// CleanupInterval is how often idle clients are evicted.
	CleanupInterval time.Duration
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		BurstSize:         20,
		IdleTTL:           5 * time.Minute,
		CleanupInterval:   time.Minute,
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client key.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*bucket
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// New creates a limiter and starts its cleanup loop.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = def.BurstSize
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*bucket),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	for key, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)}
		l.clients[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware limits by authenticated user when known, otherwise by client IP.
// Mount it after auth.Middleware.
func (l *Limiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / l.cfg.RequestsPerSecond)))
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := auth.UserID(c); uid != "" {
			key = "user:" + uid
		}

		if !l.Allow(key) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   faults.Kind(faults.ErrRateLimited),
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}
