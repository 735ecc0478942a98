package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/notegate/cache"
	"github.com/jonwraymond/notegate/ratelimit"
)

type failingStore struct {
	ratelimit.CounterStore
	pingErr error
}

func (s failingStore) UpsertIncrement(context.Context, string, time.Time, time.Time) (ratelimit.Counter, error) {
	return ratelimit.Counter{}, errors.New("down")
}

func (s failingStore) Ping(context.Context) error { return s.pingErr }

func TestCounterStoreChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		guard := ratelimit.NewGuard(ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}), ratelimit.GuardConfig{})
		r := NewCounterStoreChecker(guard).Check(ctx)
		if r.Status != StatusHealthy || r.Details["circuit"] != "closed" {
			t.Errorf("result = %+v, want healthy closed", r)
		}
	})

	t.Run("ping failure", func(t *testing.T) {
		guard := ratelimit.NewGuard(failingStore{pingErr: errors.New("refused")}, ratelimit.GuardConfig{})
		r := NewCounterStoreChecker(guard).Check(ctx)
		if r.Status != StatusUnhealthy || !errors.Is(r.Error, ratelimit.ErrCounterStoreUnavailable) {
			t.Errorf("result = %+v, want unhealthy", r)
		}
	})

	t.Run("open circuit", func(t *testing.T) {
		guard := ratelimit.NewGuard(failingStore{}, ratelimit.GuardConfig{MaxFailures: 1})
		_, _ = guard.UpsertIncrement(ctx, "user:1", time.Now(), time.Now().Add(-time.Minute))
		if guard.State() != ratelimit.CircuitOpen {
			t.Fatalf("circuit = %v, want open", guard.State())
		}
		r := NewCounterStoreChecker(guard).Check(ctx)
		if r.Status != StatusUnhealthy || r.Details["circuit"] != "open" {
			t.Errorf("result = %+v, want unhealthy open", r)
		}
	})
}

func TestCacheChecker(t *testing.T) {
	c := NewCacheChecker(func() cache.Stats {
		return cache.Stats{Hits: 3, Misses: 1, Entries: 2}
	})
	r := c.Check(context.Background())
	if r.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", r.Status)
	}
	if r.Details["hits"] != uint64(3) || r.Details["entries"] != 2 {
		t.Errorf("details = %v", r.Details)
	}
	if c.Name() != "page_cache" {
		t.Errorf("Name() = %q", c.Name())
	}
}
