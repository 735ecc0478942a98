package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, RedisStoreConfig{TTL: time.Minute}), mr
}

func TestRedisStore_UpsertIncrement(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	window := time.Minute

	steps := []struct {
		sec       int
		wantCount int
	}{
		{0, 1},
		{10, 2},
		{20, 3},
		{200, 1},
	}
	for _, s := range steps {
		now := at(s.sec)
		c, err := store.UpsertIncrement(ctx, "user:42", now, now.Add(-window))
		if err != nil {
			t.Fatalf("t=%d: UpsertIncrement error: %v", s.sec, err)
		}
		if c.Count != s.wantCount {
			t.Errorf("t=%d: Count = %d, want %d", s.sec, c.Count, s.wantCount)
		}
	}

	if got := mr.HGet("ratelimit:user:42", "count"); got != "1" {
		t.Errorf("stored count = %q, want 1", got)
	}
	if ttl := mr.TTL("ratelimit:user:42"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestRedisStore_FindActive(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	if _, found, err := store.FindActive(ctx, "user:1", at(0)); found || err != nil {
		t.Fatalf("FindActive(missing) = %v, %v", found, err)
	}

	_, _ = store.UpsertIncrement(ctx, "user:1", at(10), at(-50))
	_, _ = store.UpsertIncrement(ctx, "user:1", at(11), at(-49))

	c, found, err := store.FindActive(ctx, "user:1", at(0))
	if err != nil || !found {
		t.Fatalf("FindActive = %v, %v", found, err)
	}
	if c.Count != 2 || !c.Timestamp.Equal(at(11)) {
		t.Errorf("counter = %+v", c)
	}

	if _, found, _ := store.FindActive(ctx, "user:1", at(11)); found {
		t.Error("stale counter reported active")
	}
}

func TestRedisStore_ExpiresIdleCounters(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, _ = store.UpsertIncrement(ctx, "ip:192.0.2.1", at(0), at(-60))
	mr.FastForward(2 * time.Minute)

	if mr.Exists("ratelimit:ip:192.0.2.1") {
		t.Fatal("idle counter not expired")
	}
}

func TestRedisStore_ConcurrentAdmits(t *testing.T) {
	store, _ := newRedisStore(t)
	const c = 50
	l := NewLimiter(store, Config{Limit: c, Window: time.Minute})

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < c; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(context.Background(), "user:42", epoch)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != c {
		t.Errorf("allowed = %d, want %d", got, c)
	}
	counter, found, err := store.FindActive(context.Background(), "user:42", epoch.Add(-time.Minute))
	if err != nil || !found || counter.Count != c {
		t.Errorf("final counter = %+v, %v, %v; want count %d", counter, found, err, c)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newRedisStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error after shutdown")
	}
}
