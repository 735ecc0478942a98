package admission

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/observe"
	"github.com/jonwraymond/notegate/ratelimit"
)

// IdentityResolver derives the identity key of a request.
type IdentityResolver interface {
	Resolve(r *http.Request) string
}

// Admitter decides whether an identity may make a request at now.
type Admitter interface {
	Admit(ctx context.Context, identity string, now time.Time) (ratelimit.Decision, error)
}

var (
	_ IdentityResolver = (*auth.Resolver)(nil)
	_ Admitter         = (*ratelimit.Limiter)(nil)
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Config configures the admission middleware.
type Config struct {
	// Resolver derives identities. Required.
	Resolver IdentityResolver

	// Limiter admits or denies. Required.
	Limiter Admitter

	// SkipPaths are served without identity resolution or counting,
	// e.g. "/healthcheck" and "/metrics". A trailing "*" matches a prefix.
	SkipPaths []string

	// Logger receives debug entries for denials and errors for store failures.
	Logger observe.Logger

	// Metrics counts decisions.
	Metrics observe.Metrics

	// Now is the admission clock. Default: time.Now
	Now func() time.Time
}

// Middleware enforces admission on every request.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Downstream is invoked only for admitted requests.
//   - Quota headers are set before downstream runs, since a Go handler may
//     commit the response headers at any point.
type Middleware struct {
	resolver IdentityResolver
	limiter  Admitter
	skip     []string
	logger   observe.Logger
	metrics  observe.Metrics
	now      func() time.Time
}

// New creates the admission middleware.
func New(cfg Config) *Middleware {
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Middleware{
		resolver: cfg.Resolver,
		limiter:  cfg.Limiter,
		skip:     cfg.SkipPaths,
		logger:   cfg.Logger.With(observe.F("component", "admission")),
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// Handler wraps next with admission control.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := WithRequestID(r.Context(), requestID)

		if m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		identity := m.resolver.Resolve(r)
		kind := auth.KeyKind(identity)
		ctx = WithIdentity(ctx, identity)

		d, err := m.limiter.Admit(ctx, identity, m.now())
		if err != nil {
			m.fail(ctx, w, identity, kind, requestID, err)
			return
		}

		if !d.Allowed {
			m.metrics.RecordAdmission(ctx, "denied", kind)
			m.logger.Debug(ctx, "request denied",
				observe.F("request_id", requestID),
				observe.F("identity", identity),
				observe.F("count", d.Count),
				observe.F("limit", d.Limit),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			WriteError(w, CategoryRateLimitExceeded, "Rate limit exceeded")
			return
		}

		outcome := "allowed"
		if d.Degraded {
			outcome = "degraded"
		}
		m.metrics.RecordAdmission(ctx, outcome, kind)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		next.ServeHTTP(w, r.WithContext(WithDecision(ctx, d)))
	})
}

func (m *Middleware) fail(ctx context.Context, w http.ResponseWriter, identity, kind, requestID string, err error) {
	category := CategoryOf(err)
	m.metrics.RecordAdmission(ctx, "error", kind)

	fields := []observe.Field{
		observe.F("request_id", requestID),
		observe.F("identity", identity),
		observe.F("category", string(category)),
		observe.F("error", err),
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug(ctx, "admission abandoned by client", fields...)
	} else {
		m.logger.Error(ctx, "admission check failed", fields...)
	}

	detail := "Internal server error"
	if category == CategoryCounterStoreUnavailable {
		detail = "Rate limit service unavailable"
	}
	WriteError(w, category, detail)
}

func (m *Middleware) skipped(path string) bool {
	for _, p := range m.skip {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
