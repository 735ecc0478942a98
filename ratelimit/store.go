package ratelimit

import (
	"context"
	"time"
)

// Counter is the persisted request count of one identity.
// Timestamp is renewed on every request; the counter is active while
// Timestamp > now - window.
type Counter struct {
	Identity  string
	Timestamp time.Time
	Count     int
}

// Active reports whether the counter still belongs to the window starting at windowStart.
func (c Counter) Active(windowStart time.Time) bool {
	return c.Count > 0 && c.Timestamp.After(windowStart)
}

// CounterStore persists per-identity counters.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Atomicity: UpsertIncrement must be atomic per identity; C concurrent calls
//     for one identity within a window must yield counts 1..C exactly once each.
//   - Context: implementations must honor cancellation and deadlines.
//   - Errors: returned errors are store failures; "no counter" is not an error.
type CounterStore interface {
	// FindActive returns the identity's counter if its timestamp is after windowStart.
	FindActive(ctx context.Context, identity string, windowStart time.Time) (Counter, bool, error)

	// UpsertIncrement increments the active counter and renews its timestamp to
	// now, or replaces a missing or stale counter with {Count: 1, Timestamp: now}.
	UpsertIncrement(ctx context.Context, identity string, now, windowStart time.Time) (Counter, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pruner is implemented by stores that keep stale counters until told to drop them.
type Pruner interface {
	// Prune deletes counters whose timestamp is not after before and reports how many.
	Prune(ctx context.Context, before time.Time) (int, error)
}
