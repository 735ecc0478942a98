package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/jonwraymond/notegate/observe"
)

// Defaults applied by NewLimiter.
const (
	DefaultLimit  = 1000
	DefaultWindow = 60 * time.Minute
)

// Config configures a Limiter.
type Config struct {
	// Limit is the number of requests admitted per window.
	// Default: 1000
	Limit int

	// Window is the idle time after which an identity's counter resets.
	// Default: 60 minutes
	Window time.Duration

	// FailOpen admits requests when the counter store fails. The decision is
	// marked Degraded. Default: false (store failures deny).
	FailOpen bool

	// Guard configures the timeout and circuit around the store.
	Guard GuardConfig

	// Logger receives warnings for degraded admits.
	Logger observe.Logger
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed  bool
	Identity string
	Limit    int
	// Count is the identity's counter after this request.
	Count int
	// Remaining is Limit - Count, or 0 when denied.
	Remaining int
	// ResetAt is the start of the window the counter was evaluated against.
	ResetAt time.Time
	// RetryAfter is how long a denied identity must stay idle for its counter to reset.
	RetryAfter time.Duration
	// Degraded is set when the store failed and FailOpen admitted the request.
	Degraded bool
}

// Err returns ErrRateLimitExceeded for a denied decision and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimitExceeded
}

// Limiter applies the activity-sliding window to identities.
//
// Contract:
// - Concurrency: safe for concurrent use; atomicity comes from the store.
// - Context: store calls honor ctx and the guard timeout.
// - Errors: Admit returns an error wrapping ErrCounterStoreUnavailable when
//   the store fails and FailOpen is off; a denial is not an error.
type Limiter struct {
	cfg    Config
	guard  *Guard
	logger observe.Logger
}

// NewLimiter creates a Limiter over store.
func NewLimiter(store CounterStore, cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Limiter{
		cfg:    cfg,
		guard:  NewGuard(store, cfg.Guard),
		logger: cfg.Logger.With(observe.F("component", "ratelimit")),
	}
}

// Limit returns the configured limit.
func (l *Limiter) Limit() int { return l.cfg.Limit }

// Window returns the configured window.
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// Guard returns the guarded store.
func (l *Limiter) Guard() *Guard { return l.guard }

// Admit counts a request for identity at now and decides whether it is allowed.
func (l *Limiter) Admit(ctx context.Context, identity string, now time.Time) (Decision, error) {
	if identity == "" {
		return Decision{}, ErrMissingIdentity
	}

	windowStart := now.Add(-l.cfg.Window)
	d := Decision{
		Identity: identity,
		Limit:    l.cfg.Limit,
		ResetAt:  windowStart,
	}

	c, err := l.guard.UpsertIncrement(ctx, identity, now, windowStart)
	if err != nil {
		if !l.cfg.FailOpen {
			return d, err
		}
		l.logger.Warn(ctx, "counter store failed, admitting request",
			observe.F("identity.kind", identityKind(identity)),
			observe.F("error", err),
		)
		d.Allowed = true
		d.Remaining = l.cfg.Limit
		d.Degraded = true
		return d, nil
	}

	d.Count = c.Count
	if c.Count > l.cfg.Limit {
		d.RetryAfter = l.cfg.Window
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.cfg.Limit - c.Count
	return d, nil
}

// Status reports the identity's quota at now without counting a request.
func (l *Limiter) Status(ctx context.Context, identity string, now time.Time) (Decision, error) {
	if identity == "" {
		return Decision{}, ErrMissingIdentity
	}

	windowStart := now.Add(-l.cfg.Window)
	d := Decision{
		Identity:  identity,
		Limit:     l.cfg.Limit,
		Remaining: l.cfg.Limit,
		ResetAt:   windowStart,
		Allowed:   true,
	}

	c, found, err := l.guard.FindActive(ctx, identity, windowStart)
	if err != nil {
		return d, err
	}
	if found {
		d.Count = c.Count
		d.Remaining = max(l.cfg.Limit-c.Count, 0)
		d.Allowed = c.Count < l.cfg.Limit
	}
	return d, nil
}

// Prune drops counters that went idle for a full window before now.
func (l *Limiter) Prune(ctx context.Context, now time.Time) (int, error) {
	return l.guard.Prune(ctx, now.Add(-l.cfg.Window))
}

// StartJanitor prunes stale counters every interval until ctx is done.
func (l *Limiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.cfg.Window
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := l.Prune(ctx, time.Now())
				if err != nil {
					l.logger.Warn(ctx, "prune failed", observe.F("error", err))
					continue
				}
				if n > 0 {
					l.logger.Debug(ctx, "pruned stale counters", observe.F("removed", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// identityKind returns the part of an identity key before the first colon.
func identityKind(identity string) string {
	kind, _, ok := strings.Cut(identity, ":")
	if !ok {
		return "unknown"
	}
	return kind
}
