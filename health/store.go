package health

import (
	"context"

	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/ratelimit"
)

// CounterStoreChecker reports the rate-limit counter store. An open circuit
// makes it unhealthy even when a ping succeeds, since admissions are still
// being refused until the circuit closes.
type CounterStoreChecker struct {
	guard *ratelimit.Guard
}

// NewCounterStoreChecker creates a checker over the limiter's guard.
func NewCounterStoreChecker(guard *ratelimit.Guard) *CounterStoreChecker {
	return &CounterStoreChecker{guard: guard}
}

// Name returns the name of this checker.
func (c *CounterStoreChecker) Name() string { return "counter_store" }

// Check pings the store and reports the circuit state.
func (c *CounterStoreChecker) Check(ctx context.Context) Result {
	state := c.guard.State()
	details := map[string]any{"circuit": state.String()}

	if err := c.guard.Ping(ctx); err != nil {
		return Unhealthy("counter store unreachable", err).WithDetails(details)
	}
	switch state {
	case ratelimit.CircuitOpen:
		return Unhealthy("circuit open", ratelimit.ErrCircuitOpen).WithDetails(details)
	case ratelimit.CircuitHalfOpen:
		return Degraded("circuit half-open").WithDetails(details)
	}
	return Healthy("counter store reachable").WithDetails(details)
}

// CacheChecker exposes page cache counters. The cache lives in process, so
// it is always healthy.
type CacheChecker struct {
	stats func() cache.Stats
}

// NewCacheChecker creates a checker reporting stats.
func NewCacheChecker(stats func() cache.Stats) *CacheChecker {
	return &CacheChecker{stats: stats}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string { return "page_cache" }

// Check reports the current counters.
func (c *CacheChecker) Check(context.Context) Result {
	s := c.stats()
	return Healthy("in-process").WithDetails(map[string]any{
		"entries":   s.Entries,
		"hits":      s.Hits,
		"misses":    s.Misses,
		"evictions": s.Evictions,
	})
}
