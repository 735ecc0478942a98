package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// upsertIncrementScript increments or resets the counter hash and renews its
// timestamp in one server-side step.
//
// KEYS[1] counter key; ARGV[1] now (ms); ARGV[2] window start (ms); ARGV[3] ttl (ms)
var upsertIncrementScript = redis.NewScript(`
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts'))
local count
if ts and ts > tonumber(ARGV[2]) then
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
else
	redis.call('HSET', KEYS[1], 'count', 1)
	count = 1
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return count
`)

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	// Prefix is prepended to every counter key.
	// Default: "ratelimit:"
	Prefix string

	// TTL is how long an idle counter is kept. Set it to at least the window.
	// Default: 1 hour
	TTL time.Duration
}

// RedisStore keeps each counter in a hash {count, ts} that expires after TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}

// FindActive implements CounterStore.
func (s *RedisStore) FindActive(ctx context.Context, identity string, windowStart time.Time) (Counter, bool, error) {
	vals, err := s.client.HMGet(ctx, s.key(identity), "count", "ts").Result()
	if err != nil {
		return Counter{}, false, fmt.Errorf("redis error: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Counter{}, false, nil
	}

	count, err := parseRedisInt(vals[0])
	if err != nil {
		return Counter{}, false, err
	}
	ts, err := parseRedisInt(vals[1])
	if err != nil {
		return Counter{}, false, err
	}

	c := Counter{Identity: identity, Count: int(count), Timestamp: time.UnixMilli(ts)}
	if !c.Active(windowStart) {
		return Counter{}, false, nil
	}
	return c, true, nil
}

// UpsertIncrement implements CounterStore.
func (s *RedisStore) UpsertIncrement(ctx context.Context, identity string, now, windowStart time.Time) (Counter, error) {
	count, err := upsertIncrementScript.Run(ctx, s.client,
		[]string{s.key(identity)},
		now.UnixMilli(), windowStart.UnixMilli(), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return Counter{}, fmt.Errorf("redis error: %w", err)
	}
	return Counter{Identity: identity, Count: int(count), Timestamp: time.UnixMilli(now.UnixMilli())}, nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseRedisInt(v any) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, errors.New("redis error: unexpected counter field type")
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

var (
	_ CounterStore = (*RedisStore)(nil)
	_ Pinger       = (*RedisStore)(nil)
)
