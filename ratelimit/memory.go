package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 32

// MemoryStoreConfig configures a MemoryStore.
type MemoryStoreConfig struct {
	// Shards is the number of independently locked partitions.
	// Default: 32
	Shards int
}

// MemoryStore is a process-local CounterStore. Identities are spread over
// shards, each guarded by its own mutex; no I/O happens under a lock.
type MemoryStore struct {
	shards []*memoryShard
}

type memoryShard struct {
	mu       sync.Mutex
	counters map[string]Counter
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	s := &MemoryStore{shards: make([]*memoryShard, cfg.Shards)}
	for i := range s.shards {
		s.shards[i] = &memoryShard{counters: make(map[string]Counter)}
	}
	return s
}

func (s *MemoryStore) shard(identity string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// FindActive implements CounterStore.
func (s *MemoryStore) FindActive(ctx context.Context, identity string, windowStart time.Time) (Counter, bool, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, false, err
	}

	sh := s.shard(identity)
	sh.mu.Lock()
	c, ok := sh.counters[identity]
	sh.mu.Unlock()

	if !ok || !c.Active(windowStart) {
		return Counter{}, false, nil
	}
	return c, true, nil
}

// UpsertIncrement implements CounterStore.
func (s *MemoryStore) UpsertIncrement(ctx context.Context, identity string, now, windowStart time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}

	sh := s.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[identity]
	if ok && c.Active(windowStart) {
		c.Count++
		c.Timestamp = now
	} else {
		c = Counter{Identity: identity, Timestamp: now, Count: 1}
	}
	sh.counters[identity] = c
	return c, nil
}

// Prune implements Pruner.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for id, c := range sh.counters {
			if !c.Timestamp.After(before) {
				delete(sh.counters, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored counters, stale ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}

var (
	_ CounterStore = (*MemoryStore)(nil)
	_ Pruner       = (*MemoryStore)(nil)
)
