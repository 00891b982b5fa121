package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/health"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/notify"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/otc"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/realtime"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/retry"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/syncutil"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
	otcLockTTL      = 5 * time.Second
)

// setupStorage picks the report store (Postgres if DATABASE_URL is set) and
// the code store (Redis if REDIS_URL is set). Either falls back to memory.
func (s *Server) setupStorage(ctx context.Context) error {
	if s.reports == nil && s.cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", s.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := s.connect(ctx, "postgres", db.PingContext); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.reports = risk.NewPostgresStore(db)
		s.health.Register("postgres", health.Ping("postgres", db.PingContext))
		s.logger.Info("using PostgreSQL report store", "url", maskDSN(s.cfg.DatabaseURL))
	}
	if s.reports == nil {
		s.reports = risk.NewMemoryStore()
		s.logger.Info("using in-memory report store (data will not persist)")
	}

	otcCfg := otc.Config{
		Length:        s.cfg.OTC.Length,
		TTL:           s.cfg.OTC.TTL,
		Cooldown:      s.cfg.OTC.Cooldown,
		MaxAttempts:   s.cfg.OTC.MaxAttempts,
		VerifiedGrace: s.cfg.OTC.VerifiedGrace,
		SweepInterval: s.cfg.OTC.SweepInterval,
	}

	if s.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(s.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if err := s.connect(ctx, "redis", ping); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		s.redis = client
		s.otcService = otc.NewService(
			otc.NewRedisStore(client, s.logger),
			otc.NewRedisLocker(client, otcLockTTL, s.logger),
			otcCfg,
			s.logger,
		)
		s.health.Register("redis", health.Ping("redis", ping))
		s.logger.Info("using Redis code store", "addr", opts.Addr)
		return nil
	}

	s.otcService = otc.NewService(otc.NewMemoryStore(), syncutil.NewContextShardedMutex(), otcCfg, s.logger)
	s.logger.Info("using in-memory code store (single instance only)")
	return nil
}

// connect pings a backing store with retries so the service tolerates a
// dependency that is still starting.
func (s *Server) connect(ctx context.Context, name string, ping func(context.Context) error) error {
	return retry.DoNotify(ctx, connectAttempts, connectBackoff, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return ping(pingCtx)
	}, func(attempt int, err error, next time.Duration) {
		s.logger.Warn("store not reachable, retrying",
			"store", name,
			"attempt", attempt,
			"retry_in", next.String(),
			"error", err,
		)
	})
}

// setupRelay joins the cross-instance fan-out when NATS_URL is set.
func (s *Server) setupRelay() error {
	if s.cfg.Realtime.NATSURL == "" {
		return nil
	}
	conn, err := realtime.ConnectNATS(s.cfg.Realtime.NATSURL, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	relay := realtime.NewNATSRelay(conn, s.hub, s.logger)
	if err := relay.Start(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to start relay: %w", err)
	}
	s.natsConn = conn
	s.relay = relay
	s.health.Register("nats", health.Ping("nats", func(context.Context) error {
		if !conn.IsConnected() {
			return fmt.Errorf("nats status %s", conn.Status().String())
		}
		return nil
	}))
	s.logger.Info("realtime relay enabled", "subject", realtime.RelaySubject)
	return nil
}

// setupSenders registers one sender per configured channel. Push falls back
// to a live "notification" event when Firebase is not configured.
func (s *Server) setupSenders(ctx context.Context) error {
	n := s.cfg.Notify

	if n.FCMEnabled() {
		fcm, err := notify.NewFCMSender(ctx, n.FirebaseCredentialsPath)
		if err != nil {
			return fmt.Errorf("failed to init firebase messaging: %w", err)
		}
		s.notifier.Register(notify.ChannelPush, fcm)
		s.logger.Info("push channel enabled", "provider", "fcm")
	} else {
		s.notifier.Register(notify.ChannelPush, notify.NewLiveSender(s.hub))
		s.logger.Info("push channel enabled", "provider", "live")
	}

	if n.SMSEnabled() {
		s.notifier.Register(notify.ChannelSMS, notify.NewTwilioSender(n.TwilioAccountSID, n.TwilioAuthToken, n.TwilioFromNumber))
		s.logger.Info("sms channel enabled", "provider", "twilio")
	}

	if n.EmailEnabled() {
		s.notifier.Register(notify.ChannelEmail, notify.NewSMTPSender(n.SMTPHost, n.SMTPPort, n.SMTPUsername, n.SMTPPassword, n.SMTPFrom))
		s.logger.Info("email channel enabled", "host", n.SMTPHost)
	}
	return nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// otcNotifier tells a signed-in user's sessions that a code went out.
type otcNotifier struct {
	hub *realtime.Hub
}

func (n *otcNotifier) CodeSent(_ context.Context, userID string, expiresInMinutes int) {
	n.hub.Publish(userID, n.hub.NewEvent(realtime.EventOTCSent, map[string]interface{}{
		"message":          "A verification code was sent.",
		"expiresInMinutes": expiresInMinutes,
	}))
}

var _ otc.DeliveryNotifier = (*otcNotifier)(nil)
