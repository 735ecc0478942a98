package auth

import "errors"

// Sentinel errors for token handling.
var (
	// ErrMissingCredentials indicates no bearer token was presented.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed indicates a bad signature, an unexpected algorithm,
	// missing claims or a purpose mismatch.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrMissingSubject indicates a token was requested for an empty subject.
	ErrMissingSubject = errors.New("auth: subject is required")

	// ErrInvalidTTL indicates a non-positive token lifetime.
	ErrInvalidTTL = errors.New("auth: ttl must be positive")

	// ErrInvalidPurpose indicates an unknown purpose tag.
	ErrInvalidPurpose = errors.New("auth: invalid token purpose")

	// ErrMissingSecret indicates the codec was built without a signing secret.
	ErrMissingSecret = errors.New("auth: signing secret is required")
)
