package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/notegate/observe"
)

// ComputeFunc produces the value for a query on a cache miss.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// evictionCounter is implemented by caches that track evictions.
type evictionCounter interface {
	Evictions() uint64
}

// LoaderConfig configures a Loader.
type LoaderConfig[V any] struct {
	// Cache stores computed values. Defaults to a MemoryCache sized by Policy.
	Cache Cache[V]

	// Keyer derives keys from queries. Defaults to DefaultKeyer.
	Keyer Keyer

	// Policy controls whether results are cached and whether writes
	// invalidate.
	Policy Policy

	// Metrics records lookups and evictions. Defaults to a no-op.
	Metrics observe.Metrics

	// ComputeTimeout bounds a shared compute, which outlives the caller that
	// started it. Default: 30 seconds
	ComputeTimeout time.Duration
}

// DefaultComputeTimeout bounds a shared compute when none is configured.
const DefaultComputeTimeout = 30 * time.Second

// Loader wraps a computation with caching.
// On hit, returns the cached value without calling compute.
// On miss, calls compute once per key even under concurrent misses.
// Errors are NOT cached.
type Loader[V any] struct {
	cache   Cache[V]
	keyer   Keyer
	policy  Policy
	metrics observe.Metrics
	timeout time.Duration
	group   singleflight.Group

	// genMu orders InvalidateScope's generation bump against a flight's
	// check-then-Set, so a flight that started before a write never stores.
	genMu sync.Mutex
	gens  map[string]uint64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLoader creates a new loader.
func NewLoader[V any](cfg LoaderConfig[V]) *Loader[V] {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Keyer == nil {
		cfg.Keyer = NewDefaultKeyer()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache[V](cfg.Policy, cfg.Metrics)
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	return &Loader[V]{
		cache:   cfg.Cache,
		keyer:   cfg.Keyer,
		policy:  cfg.Policy,
		metrics: cfg.Metrics,
		timeout: cfg.ComputeTimeout,
		gens:    make(map[string]uint64),
	}
}

// Policy returns the loader's caching policy.
func (l *Loader[V]) Policy() Policy {
	return l.policy
}

// GetOrCompute returns the cached value for q, computing and storing it on
// a miss. A compute error is returned unchanged and nothing is stored.
//
// Concurrent misses for the same key share one compute call. The shared call
// is detached from any single caller's cancellation and bounded by
// ComputeTimeout; each caller still stops waiting when its own ctx ends.
func (l *Loader[V]) GetOrCompute(ctx context.Context, q Query, compute ComputeFunc[V]) (V, error) {
	var zero V
	if compute == nil {
		return zero, ErrNilCompute
	}
	if !l.policy.ShouldCache() {
		return compute(ctx)
	}

	key, err := l.keyer.Key(q)
	if err != nil {
		// Key generation failed - compute without caching
		return compute(ctx)
	}

	kind := ScopeKind(q.Scope)
	if v, ok := l.cache.Get(ctx, key); ok {
		l.hits.Add(1)
		l.metrics.RecordCacheLookup(ctx, kind, true)
		return v, nil
	}
	l.misses.Add(1)
	l.metrics.RecordCacheLookup(ctx, kind, false)

	// Callers arriving after an invalidation never join a flight that
	// started before it.
	gen := l.generation(q.Scope)
	flightKey := key + "#" + strconv.FormatUint(gen, 10)

	ch := l.group.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		// A caller that missed just before the previous flight stored its
		// value finds it here.
		if v, ok := l.cache.Get(fctx, key); ok {
			return v, nil
		}
		v, err := compute(fctx)
		if err != nil {
			return nil, err
		}
		l.storeIfCurrent(fctx, q.Scope, gen, key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Loader[V]) generation(scope string) uint64 {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	return l.gens[scope]
}

// storeIfCurrent caches v unless scope was invalidated after gen was read.
func (l *Loader[V]) storeIfCurrent(ctx context.Context, scope string, gen uint64, key string, v V) {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	if l.gens[scope] != gen {
		return
	}
	// Cache write failure is ignored
	_ = l.cache.Set(ctx, key, v)
}

// InvalidateScope evicts every cached page in scope and returns the number
// removed. It is a no-op unless the policy enables InvalidateOnWrite.
func (l *Loader[V]) InvalidateScope(ctx context.Context, scope string) int {
	if !l.policy.InvalidateOnWrite || !l.policy.ShouldCache() {
		return 0
	}
	l.genMu.Lock()
	l.gens[scope]++
	l.genMu.Unlock()

	prefix := ScopePrefix(scope)
	removed := 0
	for _, key := range l.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := l.cache.Delete(ctx, key); err == nil {
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the loader's counters.
func (l *Loader[V]) Stats() Stats {
	s := Stats{
		Hits:    l.hits.Load(),
		Misses:  l.misses.Load(),
		Entries: l.cache.Len(),
	}
	if ec, ok := l.cache.(evictionCounter); ok {
		s.Evictions = ec.Evictions()
	}
	return s
}
