package ratelimit

import "errors"

// Sentinel errors for admission.
var (
	// ErrRateLimitExceeded is reported by Decision.Err for denied requests.
	ErrRateLimitExceeded = errors.New("ratelimit: rate limit exceeded")

	// ErrCounterStoreUnavailable wraps every store failure, timeout or open circuit.
	ErrCounterStoreUnavailable = errors.New("ratelimit: counter store unavailable")

	// ErrCircuitOpen is returned while the store guard is failing fast.
	ErrCircuitOpen = errors.New("ratelimit: store circuit is open")

	// ErrStoreTimeout is returned when a store call exceeds the guard timeout.
	ErrStoreTimeout = errors.New("ratelimit: store call timed out")

	// ErrMissingIdentity is returned for an empty identity key.
	ErrMissingIdentity = errors.New("ratelimit: identity is required")
)
