package admission

import (
	"context"

	"github.com/jonwraymond/notegate/ratelimit"
)

type contextKey int

const (
	identityKey contextKey = iota
	decisionKey
	requestIDKey
)

// WithIdentity returns a new context carrying the admitted identity key.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity key the request was admitted under.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

// WithDecision returns a new context carrying the admission decision.
func WithDecision(ctx context.Context, d ratelimit.Decision) context.Context {
	return context.WithValue(ctx, decisionKey, d)
}

// DecisionFromContext returns the admission decision, if any.
func DecisionFromContext(ctx context.Context) (ratelimit.Decision, bool) {
	d, ok := ctx.Value(decisionKey).(ratelimit.Decision)
	return d, ok
}

// WithRequestID returns a new context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
