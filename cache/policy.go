package cache

import "time"

// Default policy values.
const (
	DefaultCapacity = 128
	DefaultTTL      = 5 * time.Minute
)

// Policy configures caching behavior.
type Policy struct {
	// Capacity bounds the number of cached pages. Zero or negative disables
	// caching.
	Capacity int

	// TTL expires entries after they are stored. Zero means entries live
	// until evicted by capacity.
	TTL time.Duration

	// InvalidateOnWrite enables scope eviction after mutations. When false,
	// cached pages stay stale until they expire or are evicted.
	InvalidateOnWrite bool
}

// DefaultPolicy returns the default caching policy.
// Capacity: 128, TTL: 5 minutes, InvalidateOnWrite: false
func DefaultPolicy() Policy {
	return Policy{
		Capacity: DefaultCapacity,
		TTL:      DefaultTTL,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.Capacity > 0
}

// EffectiveTTL returns the entry lifetime, or zero for none.
func (p Policy) EffectiveTTL() time.Duration {
	if p.TTL < 0 {
		return 0
	}
	return p.TTL
}
