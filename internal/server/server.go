// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/alerts"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/auth"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/config"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/content"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/health"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/idgen"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/notify"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/otc"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/ratelimit"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/realtime"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/security"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/traces"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/validation"
)

// Version is reported by the health endpoints.
const Version = "0.1.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *sql.DB       // nil if using in-memory
	redis    *redis.Client // nil if using in-memory
	natsConn *nats.Conn    // nil when fan-out is single-instance

	reports    risk.ReportStore
	engine     *risk.Engine
	analyzer   *content.Analyzer
	otcService *otc.Service
	sweeper    *otc.Sweeper
	hub        *realtime.Hub
	relay      *realtime.NATSRelay
	dispatcher *alerts.Dispatcher
	notifier   *notify.Router
	contacts   *notify.MemoryContacts
	authMgr    *auth.Manager
	health     *health.Registry

	rateLimiter    *ratelimit.Limiter
	router         *gin.Engine
	httpSrv        *http.Server
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run
	shutdownTraces func(context.Context) error
	drainDelay     time.Duration

	ready atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReportStore overrides the fraud report store (for testing)
func WithReportStore(store risk.ReportStore) Option {
	return func(s *Server) {
		s.reports = store
	}
}

// WithDrainDelay sets how long Shutdown waits for load balancers to stop
// sending traffic before closing listeners.
func WithDrainDelay(d time.Duration) Option {
	return func(s *Server) {
		s.drainDelay = d
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTraces = shutdownTraces

	if err := s.setupStorage(ctx); err != nil {
		return nil, err
	}

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		// Development only; Validate rejects an empty secret in production.
		secret = idgen.Hex(32)
		s.logger.Warn("SESSION_SECRET not set, using an ephemeral secret")
	}
	s.authMgr = auth.NewManager(secret, cfg.Auth.SessionTTL)

	s.hub = realtime.NewHub(s.logger).
		WithMaxSessions(cfg.Realtime.MaxClients).
		WithTokens(s.authMgr)
	if err := s.setupRelay(); err != nil {
		return nil, err
	}

	s.contacts = notify.NewMemoryContacts()
	s.notifier = notify.NewRouter(s.contacts, nil, s.logger)
	if err := s.setupSenders(ctx); err != nil {
		return nil, err
	}

	s.dispatcher = alerts.NewDispatcher(
		alerts.NewMemoryStore(cfg.Alerts.PendingCap, cfg.Alerts.HistoryCap),
		s.hub,
		s.logger,
	).WithRouter(s.notifier)
	s.hub.Handle(realtime.EventAlertAcknowledge, s.dispatcher.HandleAcknowledge)

	s.engine = risk.NewEngine(s.reports, s.logger).
		WithWindow(cfg.Risk.Window).
		WithHighThreshold(cfg.Risk.HighThreshold).
		WithLookupTimeout(cfg.Risk.LookupTimeout).
		WithTrigger(s.dispatcher)
	s.analyzer = content.NewAnalyzer()
	s.sweeper = otc.NewSweeper(s.otcService, s.logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-ID")
	corsCfg.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	s.router.Use(cors.New(corsCfg))

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	// Session first so the limiter can key on the user.
	s.router.Use(auth.Middleware(s.authMgr))

	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: float64(s.cfg.RateLimitRPS),
		BurstSize:         s.cfg.RateLimitBurst,
	})
	s.router.Use(s.rateLimiter.Middleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.Hex(16)
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())
		if uid := auth.UserID(c); uid != "" {
			logger = logger.With("user_id", uid)
		}

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Debug("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.health.RegisterRoutes(s.router, Version)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	if s.cfg.IsDevelopment() {
		auth.NewHandler(s.authMgr).RegisterRoutes(v1)
	}

	risk.NewHandler(s.engine).RegisterRoutes(v1)
	content.NewHandler(s.analyzer, s.engine).RegisterRoutes(v1)
	otc.NewHandler(s.otcService).
		WithNotifier(&otcNotifier{hub: s.hub}).
		RegisterRoutes(v1)
	alerts.NewHandler(s.dispatcher).RegisterRoutes(v1)
	notify.NewHandler(s.contacts).RegisterRoutes(v1)
	rt := realtime.NewHandler(s.hub)
	if s.cfg.IsDevelopment() {
		rt.WithBroadcast()
	}
	rt.RegisterRoutes(v1)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.hub.Run(runCtx)
	go s.sweeper.Start(runCtx)
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stops the hub (closing every session) and the sweeper.
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}
	s.sweeper.Stop()
	s.rateLimiter.Stop()

	// In-flight channel deliveries finish before their transports close.
	s.notifier.Wait()

	if s.relay != nil {
		if err := s.relay.Stop(); err != nil {
			s.logger.Error("relay stop error", "error", err)
		}
	}
	if s.natsConn != nil {
		if err := s.natsConn.Drain(); err != nil {
			s.logger.Error("nats drain error", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}
	if err := s.shutdownTraces(ctx); err != nil {
		s.logger.Error("trace shutdown error", "error", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Ready reports whether Run has started serving.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the connection registry.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}
