// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	minAccessTTL = 15 * time.Minute
	maxAccessTTL = 30 * time.Minute
	// minSecretLen is the shortest HS256 secret accepted outside development.
	minSecretLen = 32
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the shared HS256 signing secret for access tokens, or "file:<path>" to read it from a file.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "geotrack-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (15m–30m).
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// AdminIdentity is the identity used when login is called without an email.
	AdminIdentity string `mapstructure:"ADMIN_IDENTITY"`
	// AdminPIN, when set, provisions the admin credential at startup if it does not exist.
	AdminPIN string `mapstructure:"ADMIN_PIN"`
	// LockoutThreshold is the number of consecutive PIN failures that locks a credential.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutDuration is how long a locked credential stays locked (e.g. "15m").
	LockoutDuration string `mapstructure:"LOCKOUT_DURATION"`
	// MaxFixFutureSkew bounds how far in the future a fix timestamp may be (e.g. "24h").
	MaxFixFutureSkew string `mapstructure:"MAX_FIX_FUTURE_SKEW"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins. Empty allows any origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// RedisURL enables per-IP login rate limiting (e.g. redis://localhost:6379/0). Empty disables it.
	RedisURL string `mapstructure:"REDIS_URL"`
	// LoginRateLimit is the max login attempts per client IP per LoginRateWindow.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
	// LoginRateWindow is the rate limit window (e.g. "1m").
	LoginRateWindow string `mapstructure:"LOGIN_RATE_WINDOW"`

	// SMTP settings for forgot-pin delivery. Empty SMTPHost logs the PIN instead of sending mail.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// SyncKafkaBrokers is a comma-separated list of Kafka broker addresses for sync events.
	SyncKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SyncKafkaTopic is the Kafka topic for sync events (default geotrack-sync).
	SyncKafkaTopic string `mapstructure:"SYNC_KAFKA_TOPIC"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint. Empty uses no-op exporters.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// DevPINReturn when true keeps reset PINs in memory for GET /dev/pin. Must not be true when Env is production.
	DevPINReturn bool `mapstructure:"DEV_PIN_RETURN"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "geotrack-auth")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("ADMIN_IDENTITY", "admin")
	v.SetDefault("ADMIN_PIN", "")
	v.SetDefault("LOCKOUT_THRESHOLD", 3)
	v.SetDefault("LOCKOUT_DURATION", "15m")
	v.SetDefault("MAX_FIX_FUTURE_SKEW", "24h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@geotrack.local")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SYNC_KAFKA_TOPIC", "geotrack-sync")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "geotrack-backend")
	v.SetDefault("DEV_PIN_RETURN", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.IsProduction() && !strings.HasPrefix(c.JWTSecret, "file:") && len(c.JWTSecret) < minSecretLen {
		return errors.New("config: JWT_SECRET must be at least 32 bytes when APP_ENV=production")
	}
	if c.DevPINReturn && c.IsProduction() {
		return errors.New("config: DEV_PIN_RETURN must not be true when APP_ENV=production")
	}
	if d, err := time.ParseDuration(c.JWTAccessTTL); err != nil || d < minAccessTTL || d > maxAccessTTL {
		return errors.New("config: JWT_ACCESS_TTL must be a duration between 15m and 30m")
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.LockoutThreshold <= 0 {
		return errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}
	if strings.TrimSpace(c.AdminIdentity) == "" {
		return errors.New("config: ADMIN_IDENTITY must be set")
	}
	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// LockoutWindow parses LockoutDuration. Returns 15m if unset or invalid.
func (c *Config) LockoutWindow() time.Duration {
	return parseDuration(c.LockoutDuration, 15*time.Minute)
}

// FixFutureSkew parses MaxFixFutureSkew. Returns 24h if unset or invalid.
func (c *Config) FixFutureSkew() time.Duration {
	return parseDuration(c.MaxFixFutureSkew, 24*time.Hour)
}

// LoginRateWindowDuration parses LoginRateWindow. Returns 1m if unset or invalid.
func (c *Config) LoginRateWindowDuration() time.Duration {
	return parseDuration(c.LoginRateWindow, time.Minute)
}

// SyncKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if sync event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) SyncKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.SyncKafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins; nil means any origin.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
