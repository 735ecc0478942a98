package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"SECRET_KEY": "s3cret"})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.RateLimit != 1000 || cfg.RateLimitWindow != 60*time.Minute {
		t.Errorf("rate limit = %d/%v, want 1000/60m", cfg.RateLimit, cfg.RateLimitWindow)
	}
	if cfg.AccessTokenTTL() != 15*time.Minute || cfg.RefreshTokenTTL() != 24*time.Hour {
		t.Errorf("token ttls = %v/%v", cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	}
	if cfg.CounterStore != StoreMemory || cfg.RateLimitFailOpen {
		t.Errorf("store = %q failOpen = %v", cfg.CounterStore, cfg.RateLimitFailOpen)
	}

	policy := cfg.CachePolicy()
	if policy.Capacity != 128 || policy.TTL != 5*time.Minute || policy.InvalidateOnWrite {
		t.Errorf("CachePolicy() = %+v", policy)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SECRET_KEY":                    "s3cret",
		"RATE_LIMIT":                    "3",
		"RATE_LIMIT_WINDOW":             "60s",
		"RATE_LIMIT_FAIL_OPEN":          "true",
		"COUNTER_STORE":                 " Redis ",
		"REDIS_URL":                     "redis://localhost:6379/0",
		"CACHE_INVALIDATE_ON_WRITE":     "true",
		"TRACING_EXPORTER":              "otlp",
		"METRICS_EXPORTER":              "none",
		"STORE_TIMEOUT":                 "250ms",
		"TOKEN_EXPIRES_MINUTES":         "5",
		"TOKEN_REFRESH_EXPIRES_MINUTES": "90",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	lim := cfg.Limiter()
	if lim.Limit != 3 || lim.Window != time.Minute || !lim.FailOpen || lim.Guard.Timeout != 250*time.Millisecond {
		t.Errorf("Limiter() = %+v", lim)
	}
	if cfg.CounterStore != StoreRedis {
		t.Errorf("CounterStore = %q, want redis", cfg.CounterStore)
	}
	obs := cfg.Observe()
	if !obs.Tracing.Enabled || obs.Metrics.Enabled {
		t.Errorf("Observe() = %+v", obs)
	}
	if err := obs.Validate(); err != nil {
		t.Errorf("Observe().Validate() error = %v", err)
	}
	if !cfg.CachePolicy().InvalidateOnWrite {
		t.Error("InvalidateOnWrite not applied")
	}
	if cfg.AccessTokenTTL() != 5*time.Minute || cfg.RefreshTokenTTL() != 90*time.Minute {
		t.Errorf("token ttls = %v/%v, want 5m/90m", cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"missing secret", map[string]string{}, ErrMissingSecret},
		{"blank secret", map[string]string{"SECRET_KEY": "  "}, ErrMissingSecret},
		{"unknown store", map[string]string{"SECRET_KEY": "s", "COUNTER_STORE": "etcd"}, ErrInvalidCounterStore},
		{"postgres without dsn", map[string]string{"SECRET_KEY": "s", "COUNTER_STORE": "postgres"}, ErrMissingDSN},
		{"redis without url", map[string]string{"SECRET_KEY": "s", "COUNTER_STORE": "redis"}, ErrMissingRedisURL},
		{"zero limit", map[string]string{"SECRET_KEY": "s", "RATE_LIMIT": "0"}, ErrInvalidValue},
		{"negative window", map[string]string{"SECRET_KEY": "s", "RATE_LIMIT_WINDOW": "-1m"}, ErrInvalidValue},
		{"bad log level", map[string]string{"SECRET_KEY": "s", "LOG_LEVEL": "loud"}, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.env)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFrom() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"SECRET_KEY": "s", "RATE_LIMIT": "many"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPostgres(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SECRET_KEY":    "s",
		"COUNTER_STORE": "postgres",
		"DATABASE_DSN":  "postgres://u:p@localhost/notes",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	pg := cfg.Postgres()
	if pg.DSN != "postgres://u:p@localhost/notes" || !pg.Migrate || pg.MaxOpenConns != 15 {
		t.Errorf("Postgres() = %+v", pg)
	}
}
