package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/jonwraymond/notegate/observe"
)

// Verifier verifies a bearer token and returns its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

var _ Verifier = (*TokenCodec)(nil)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Verifier checks bearer tokens. Required.
	Verifier Verifier

	// Logger receives debug entries for rejected tokens.
	Logger observe.Logger

	// TrustForwardedFor uses X-Forwarded-For / X-Real-IP for the client address.
	// Only enable behind a proxy that overwrites these headers.
	TrustForwardedFor bool
}

// Resolver derives the rate limit identity of a request.
type Resolver struct {
	verifier     Verifier
	logger       observe.Logger
	trustForward bool
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Resolver{
		verifier:     cfg.Verifier,
		logger:       cfg.Logger.With(observe.F("component", "auth.resolver")),
		trustForward: cfg.TrustForwardedFor,
	}
}

// TrySubject returns the subject of a valid bearer token in an
// Authorization header value.
func (r *Resolver) TrySubject(authorization string) (string, bool) {
	sub, err := r.subject(authorization)
	return sub, err == nil
}

func (r *Resolver) subject(authorization string) (string, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return "", ErrMissingCredentials
	}
	if r.verifier == nil {
		return "", ErrTokenMalformed
	}
	return r.verifier.Verify(token)
}

// Resolve returns the identity key for a request. It never fails: requests
// without a usable token are keyed by client address.
func (r *Resolver) Resolve(req *http.Request) string {
	sub, err := r.subject(req.Header.Get("Authorization"))
	if err != nil && !errors.Is(err, ErrMissingCredentials) {
		r.logger.Debug(req.Context(), "bearer token ignored for identity",
			observe.F("reason", reason(err)),
		)
	}
	return Key(sub, err == nil, ClientAddr(req, r.trustForward))
}

func reason(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
// The scheme is matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClientAddr returns the client address of a request: the host part of
// RemoteAddr, or the first forwarded hop when trustForwarded is set.
func ClientAddr(req *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	if req.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
