package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrNilCompute = errors.New("cache: compute function is nil")
)

// Cache stores computed values by key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get never errors; it returns (zero, false) on miss or expiry.
// - Lookup and insert never block on I/O.
type Cache[V any] interface {
	// Get retrieves a cached value and marks it most recently used.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value, evicting the least recently used entry when full.
	Set(ctx context.Context, key string, value V) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Keys returns the live keys, oldest first.
	Keys() []string

	// Len returns the number of live entries.
	Len() int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
