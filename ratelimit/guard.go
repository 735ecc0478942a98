package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/notegate/observe"
)

// CircuitState is the state of the guard's circuit.
type CircuitState int

const (
	// CircuitClosed passes calls to the store.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails calls without touching the store.
	CircuitOpen
	// CircuitHalfOpen lets a single probe through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Timeout bounds every store call.
	// Default: 2 seconds
	Timeout time.Duration

	// MaxFailures is the number of consecutive failures that open the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to CircuitState)

	// Instrumenter traces and times store calls.
	Instrumenter *observe.Instrumenter

	// Now is the clock used for the open interval. Default: time.Now
	Now func() time.Time
}

// Guard wraps a CounterStore with a per-call timeout and a circuit breaker.
// Every failure it returns wraps ErrCounterStoreUnavailable.
type Guard struct {
	store CounterStore
	cfg   GuardConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewGuard wraps store.
func NewGuard(store CounterStore, cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Guard{store: store, cfg: cfg, state: CircuitClosed}
}

// FindActive implements CounterStore.
func (g *Guard) FindActive(ctx context.Context, identity string, windowStart time.Time) (Counter, bool, error) {
	r, err := guarded(ctx, g, "find_active", identity, func(ctx context.Context) (activeCounter, error) {
		c, found, err := g.store.FindActive(ctx, identity, windowStart)
		return activeCounter{counter: c, found: found}, err
	})
	return r.counter, r.found, err
}

// UpsertIncrement implements CounterStore.
func (g *Guard) UpsertIncrement(ctx context.Context, identity string, now, windowStart time.Time) (Counter, error) {
	return guarded(ctx, g, "upsert_increment", identity, func(ctx context.Context) (Counter, error) {
		return g.store.UpsertIncrement(ctx, identity, now, windowStart)
	})
}

type activeCounter struct {
	counter Counter
	found   bool
}

// Ping checks the wrapped store when it supports it. The circuit is bypassed
// so health checks can observe recovery.
func (g *Guard) Ping(ctx context.Context) error {
	p, ok := g.store.(Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCounterStoreUnavailable, err)
	}
	return nil
}

// Prune forwards to the wrapped store when it supports it.
func (g *Guard) Prune(ctx context.Context, before time.Time) (int, error) {
	p, ok := g.store.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx, before)
}

// State returns the current circuit state.
func (g *Guard) State() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentStateLocked()
}

// Reset closes the circuit.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	g.probing = false
	g.transitionLocked(CircuitClosed)
}

// guarded runs fn through the circuit, the instrumenter and the timeout.
func guarded[T any](ctx context.Context, g *Guard, name, identity string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.beforeCall(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCounterStoreUnavailable, err)
	}

	op := observe.Operation{
		Component: "ratelimit.store",
		Name:      name,
		Attrs:     []attribute.KeyValue{attribute.String("identity.kind", identityKind(identity))},
	}
	v, err := observe.Call(ctx, g.cfg.Instrumenter, op, func(ctx context.Context) (T, error) {
		return withTimeout(ctx, g.cfg.Timeout, fn)
	})

	g.afterCall(err)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCounterStoreUnavailable, err)
	}
	return v, nil
}

type storeResult[T any] struct {
	val T
	err error
}

// withTimeout returns ErrStoreTimeout once the deadline passes even if fn
// ignores its context. The result travels only over the channel, so a late
// result is dropped without touching caller state.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan storeResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- storeResult[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %w", ErrStoreTimeout, r.err)
		}
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrStoreTimeout
		}
		return zero, ctx.Err()
	}
}

func (g *Guard) beforeCall() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.currentStateLocked() {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if g.probing {
			return ErrCircuitOpen
		}
		g.probing = true
	}
	return nil
}

// Caller cancellation says nothing about store health and is not counted.
func isFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (g *Guard) afterCall(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	failed := isFailure(err)

	switch g.state {
	case CircuitClosed:
		if !failed {
			g.failures = 0
			return
		}
		g.failures++
		g.lastFailure = g.cfg.Now()
		if g.failures >= g.cfg.MaxFailures {
			g.transitionLocked(CircuitOpen)
		}

	case CircuitHalfOpen:
		g.probing = false
		if failed {
			g.lastFailure = g.cfg.Now()
			g.transitionLocked(CircuitOpen)
			return
		}
		if err == nil {
			g.failures = 0
			g.transitionLocked(CircuitClosed)
		}
	}
}

func (g *Guard) currentStateLocked() CircuitState {
	if g.state == CircuitOpen && g.cfg.Now().Sub(g.lastFailure) >= g.cfg.ResetTimeout {
		g.probing = false
		g.transitionLocked(CircuitHalfOpen)
	}
	return g.state
}

func (g *Guard) transitionLocked(to CircuitState) {
	from := g.state
	g.state = to
	if from != to && g.cfg.OnStateChange != nil {
		g.cfg.OnStateChange(from, to)
	}
}

var (
	_ CounterStore = (*Guard)(nil)
	_ Pinger       = (*Guard)(nil)
	_ Pruner       = (*Guard)(nil)
)
