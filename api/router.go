package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/notegate/admission"
	"github.com/jonwraymond/notegate/auth"
	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/health"
	"github.com/jonwraymond/notegate/notes"
	"github.com/jonwraymond/notegate/observe"
	"github.com/jonwraymond/notegate/ratelimit"
)

// Paths served without admission control.
var UnmeteredPaths = []string{
	"/healthcheck",
	"/readyz",
	"/metrics",
	"/api/v1/ratelimit/status",
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	auth.Identifier
	IssueFor(subject string, purpose auth.Purpose, ttl time.Duration) (string, error)
}

// Notes serves note listings and creation.
type Notes interface {
	Explore(ctx context.Context, q cache.Query) (*notes.Page, error)
	Mine(ctx context.Context, subject string, q cache.Query) (*notes.Page, error)
	Create(ctx context.Context, owner string, in notes.NewNote) (*notes.Note, error)
}

// QuotaReader reports an identity's quota without counting a request.
type QuotaReader interface {
	Status(ctx context.Context, identity string, now time.Time) (ratelimit.Decision, error)
}

var (
	_ Tokens      = (*auth.TokenCodec)(nil)
	_ Notes       = (*notes.CachedService)(nil)
	_ QuotaReader = (*ratelimit.Limiter)(nil)
)

// Config configures the router.
type Config struct {
	// ServiceName names the server span operation.
	ServiceName string

	// Tokens verifies bearer tokens and mints refreshed ones. Required.
	Tokens Tokens

	// RefreshTTL is the lifetime of refreshed tokens. Default: 60 minutes
	RefreshTTL time.Duration

	// Notes serves the note endpoints. Nil leaves them unregistered.
	Notes Notes

	// Quota and Resolver serve the rate-limit status endpoint. Both are
	// needed for it to be registered.
	Quota    QuotaReader
	Resolver admission.IdentityResolver

	// Admission wraps every route. Nil disables admission control.
	Admission *admission.Middleware

	// Health backs /readyz. Nil leaves it unregistered.
	Health *health.Aggregator

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	Logger observe.Logger
	Now    func() time.Time
}

type server struct {
	cfg    Config
	logger observe.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "notegate"
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 60 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &server{cfg: cfg, logger: cfg.Logger.With(observe.F("component", "api"))}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, admission.CategoryBadRequest, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, admission.CategoryBadRequest, "Method Not Allowed")
	})

	r.Handle("/healthcheck", health.LivenessHandler()).Methods(http.MethodGet)
	if cfg.Health != nil {
		r.Handle("/readyz", health.ReadinessHandler(cfg.Health)).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	bearer := auth.RequireBearer(auth.RequireConfig{Identifier: cfg.Tokens, Logger: cfg.Logger})

	v1.Handle("/auth/refresh-token", bearer(http.HandlerFunc(s.refreshToken))).Methods(http.MethodPost)
	if cfg.Quota != nil && cfg.Resolver != nil {
		v1.HandleFunc("/ratelimit/status", s.rateLimitStatus).Methods(http.MethodGet)
	}
	if cfg.Notes != nil {
		v1.Handle("/notes/explore", bearer(http.HandlerFunc(s.exploreNotes))).Methods(http.MethodGet)
		v1.Handle("/notes", bearer(http.HandlerFunc(s.myNotes))).Methods(http.MethodGet)
		v1.Handle("/notes", bearer(http.HandlerFunc(s.createNote))).Methods(http.MethodPost)
	}

	var h http.Handler = r
	if cfg.Admission != nil {
		h = cfg.Admission.Handler(h)
	}
	return otelhttp.NewHandler(h, cfg.ServiceName)
}
