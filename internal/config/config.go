// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	LogFormat      string // "json" or "text"
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int

	// Storage. Empty URLs select the in-memory implementations.
	DatabaseURL string
	RedisURL    string

	Risk     RiskConfig
	OTC      OTCConfig
	Alerts   AlertsConfig
	Realtime RealtimeConfig
	Auth     AuthConfig
	Notify   NotifyConfig

	OTLPEndpoint string // empty disables trace export
}

// RiskConfig tunes entity risk scoring.
type RiskConfig struct {
	Window        time.Duration
	HighThreshold int
	LookupTimeout time.Duration
}

// OTCConfig tunes one-time code issuance and verification.
type OTCConfig struct {
	Length        int
	TTL           time.Duration
	Cooldown      time.Duration
	MaxAttempts   int
	VerifiedGrace time.Duration
	SweepInterval time.Duration
}

// AlertsConfig bounds the per-user alert lists.
type AlertsConfig struct {
	PendingCap int
	HistoryCap int
}

// RealtimeConfig controls the push hub.
type RealtimeConfig struct {
	MaxClients int
	NATSURL    string // empty keeps fan-out single-instance
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
}

// NotifyConfig holds secondary channel provider credentials.
// A provider left unconfigured disables its channel.
type NotifyConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	FirebaseCredentialsPath string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// SMSEnabled reports whether Twilio credentials are present.
func (n NotifyConfig) SMSEnabled() bool {
	return n.TwilioAccountSID != "" && n.TwilioAuthToken != "" && n.TwilioFromNumber != ""
}

// EmailEnabled reports whether an SMTP relay is configured.
func (n NotifyConfig) EmailEnabled() bool {
	return n.SMTPHost != "" && n.SMTPFrom != ""
}

// FCMEnabled reports whether Firebase credentials are configured.
func (n NotifyConfig) FCMEnabled() bool {
	return n.FirebaseCredentialsPath != ""
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultRateLimit      = 10
	DefaultRateLimitBurst = 20

	DefaultRiskWindow        = 30 * 24 * time.Hour
	DefaultRiskHighThreshold = 5
	DefaultRiskLookupTimeout = 3 * time.Second

	DefaultOTCLength        = 6
	DefaultOTCTTL           = 10 * time.Minute
	DefaultOTCCooldown      = 60 * time.Second
	DefaultOTCMaxAttempts   = 3
	DefaultOTCVerifiedGrace = 5 * time.Second
	DefaultOTCSweepInterval = 5 * time.Minute

	DefaultPendingCap = 100
	DefaultHistoryCap = 500

	DefaultMaxClients = 10000
	DefaultSessionTTL = 24 * time.Hour
	DefaultSMTPPort   = 587

	MinOTCLength = 4
	MaxOTCLength = 10
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", DefaultRateLimit),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		Risk: RiskConfig{
			Window:        getEnvDuration("RISK_WINDOW", DefaultRiskWindow),
			HighThreshold: getEnvInt("RISK_HIGH_THRESHOLD", DefaultRiskHighThreshold),
			LookupTimeout: getEnvDuration("RISK_LOOKUP_TIMEOUT", DefaultRiskLookupTimeout),
		},
		OTC: OTCConfig{
			Length:        getEnvInt("OTC_LENGTH", DefaultOTCLength),
			TTL:           getEnvDuration("OTC_TTL", DefaultOTCTTL),
			Cooldown:      getEnvDuration("OTC_COOLDOWN", DefaultOTCCooldown),
			MaxAttempts:   getEnvInt("OTC_MAX_ATTEMPTS", DefaultOTCMaxAttempts),
			VerifiedGrace: getEnvDuration("OTC_VERIFIED_GRACE", DefaultOTCVerifiedGrace),
			SweepInterval: getEnvDuration("OTC_SWEEP_INTERVAL", DefaultOTCSweepInterval),
		},
		Alerts: AlertsConfig{
			PendingCap: getEnvInt("ALERTS_PENDING_CAP", DefaultPendingCap),
			HistoryCap: getEnvInt("ALERTS_HISTORY_CAP", DefaultHistoryCap),
		},
		Realtime: RealtimeConfig{
			MaxClients: getEnvInt("WS_MAX_CLIENTS", DefaultMaxClients),
			NATSURL:    os.Getenv("NATS_URL"),
		},
		Auth: AuthConfig{
			SessionSecret: os.Getenv("SESSION_SECRET"),
			SessionTTL:    getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		},
		Notify: NotifyConfig{
			TwilioAccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber:        os.Getenv("TWILIO_FROM_NUMBER"),
			FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
			SMTPHost:                os.Getenv("SMTP_HOST"),
			SMTPPort:                getEnvInt("SMTP_PORT", DefaultSMTPPort),
			SMTPUsername:            os.Getenv("SMTP_USERNAME"),
			SMTPPassword:            os.Getenv("SMTP_PASSWORD"),
			SMTPFrom:                os.Getenv("SMTP_FROM"),
		},
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.OTC.Length < MinOTCLength || c.OTC.Length > MaxOTCLength {
		return fmt.Errorf("OTC_LENGTH must be between %d and %d", MinOTCLength, MaxOTCLength)
	}
	if c.OTC.MaxAttempts <= 0 {
		return fmt.Errorf("OTC_MAX_ATTEMPTS must be positive")
	}
	for name, d := range map[string]time.Duration{
		"OTC_TTL":             c.OTC.TTL,
		"OTC_SWEEP_INTERVAL":  c.OTC.SweepInterval,
		"RISK_WINDOW":         c.Risk.Window,
		"RISK_LOOKUP_TIMEOUT": c.Risk.LookupTimeout,
		"SESSION_TTL":         c.Auth.SessionTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.OTC.Cooldown < 0 || c.OTC.VerifiedGrace < 0 {
		return fmt.Errorf("OTC_COOLDOWN and OTC_VERIFIED_GRACE must not be negative")
	}
	if c.Alerts.PendingCap <= 0 || c.Alerts.HistoryCap <= 0 {
		return fmt.Errorf("ALERTS_PENDING_CAP and ALERTS_HISTORY_CAP must be positive")
	}
	if c.Realtime.MaxClients <= 0 {
		return fmt.Errorf("WS_MAX_CLIENTS must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.IsProduction() && c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
