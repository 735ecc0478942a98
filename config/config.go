// Package config loads notegate settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/observe"
	"github.com/jonwraymond/notegate/ratelimit"
	"github.com/jonwraymond/notegate/storage"
)

// Counter store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Sentinel errors for configuration.
var (
	ErrMissingSecret       = errors.New("config: SECRET_KEY is required")
	ErrInvalidCounterStore = errors.New("config: invalid COUNTER_STORE")
	ErrMissingDSN          = errors.New("config: DATABASE_DSN is required for the postgres counter store")
	ErrMissingRedisURL     = errors.New("config: REDIS_URL is required for the redis counter store")
	ErrInvalidValue        = errors.New("config: invalid value")
)

// Config holds the environment driven configuration.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"notegate"`
	Version         string        `env:"SERVICE_VERSION" envDefault:"dev"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	SecretKey                  string `env:"SECRET_KEY"`
	TokenExpiresMinutes        int    `env:"TOKEN_EXPIRES_MINUTES" envDefault:"15"`
	TokenRefreshExpiresMinutes int    `env:"TOKEN_REFRESH_EXPIRES_MINUTES" envDefault:"1440"`
	TrustForwardedFor          bool   `env:"TRUST_FORWARDED_FOR" envDefault:"false"`

	RateLimit         int           `env:"RATE_LIMIT" envDefault:"1000"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60m"`
	RateLimitFailOpen bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"false"`
	CounterStore      string        `env:"COUNTER_STORE" envDefault:"memory"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	PruneInterval     time.Duration `env:"RATE_LIMIT_PRUNE_INTERVAL" envDefault:"5m"`

	CacheMaxSize           int           `env:"CACHE_MAXSIZE" envDefault:"128"`
	CacheTTL               time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheInvalidateOnWrite bool          `env:"CACHE_INVALIDATE_ON_WRITE" envDefault:"false"`

	DatabaseDSN     string        `env:"DATABASE_DSN"`
	DatabaseMigrate bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	RedisURL        string        `env:"REDIS_URL"`

	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	TracingExporter  string  `env:"TRACING_EXPORTER" envDefault:"none"`
	TracingSamplePct float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1"`
	MetricsExporter  string  `env:"METRICS_EXPORTER" envDefault:"prometheus"`
}

// Load parses the process environment into Config and validates it.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.CounterStore = strings.ToLower(strings.TrimSpace(cfg.CounterStore))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return ErrMissingSecret
	}
	switch c.CounterStore {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseDSN == "" {
			return ErrMissingDSN
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCounterStore, c.CounterStore)
	}

	positive := []struct {
		name string
		ok   bool
	}{
		{"RATE_LIMIT", c.RateLimit > 0},
		{"RATE_LIMIT_WINDOW", c.RateLimitWindow > 0},
		{"TOKEN_EXPIRES_MINUTES", c.TokenExpiresMinutes > 0},
		{"TOKEN_REFRESH_EXPIRES_MINUTES", c.TokenRefreshExpiresMinutes > 0},
		{"STORE_TIMEOUT", c.StoreTimeout > 0},
		{"CACHE_MAXSIZE", c.CacheMaxSize >= 0},
		{"CACHE_TTL", c.CacheTTL >= 0},
	}
	for _, p := range positive {
		if !p.ok {
			return fmt.Errorf("%w: %s", ErrInvalidValue, p.name)
		}
	}

	if !slices.Contains(observe.ValidLogLevels, c.LogLevel) {
		return fmt.Errorf("%w: LOG_LEVEL %q", ErrInvalidValue, c.LogLevel)
	}
	return nil
}

// AccessTokenTTL is the lifetime of tokens issued by the token command.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.TokenExpiresMinutes) * time.Minute
}

// RefreshTokenTTL is the lifetime of tokens minted by the refresh endpoint.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.TokenRefreshExpiresMinutes) * time.Minute
}

// Observe returns the observer configuration.
func (c *Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: c.TracingSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}

// Limiter returns the rate limiter configuration. Callers fill in the
// logger and instrumentation.
func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Limit:    c.RateLimit,
		Window:   c.RateLimitWindow,
		FailOpen: c.RateLimitFailOpen,
		Guard: ratelimit.GuardConfig{
			Timeout: c.StoreTimeout,
		},
	}
}

// CachePolicy returns the page cache policy.
func (c *Config) CachePolicy() cache.Policy {
	return cache.Policy{
		Capacity:          c.CacheMaxSize,
		TTL:               c.CacheTTL,
		InvalidateOnWrite: c.CacheInvalidateOnWrite,
	}
}

// Postgres returns the database pool configuration.
func (c *Config) Postgres() storage.PostgresConfig {
	return storage.PostgresConfig{
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnLifetime,
		Migrate:         c.DatabaseMigrate,
	}
}
