// Package ratelimit admits or denies requests per identity using an
// activity-sliding window counter.
//
// Every admitted or denied request increments the identity's counter and
// renews its timestamp, so the window keeps extending while the identity is
// active and only resets after a full idle window:
//
//	windowStart = now - window
//	counter     = store.UpsertIncrement(identity, now, windowStart)
//	allowed     = counter.Count <= limit
//
// The read-increment-write is a single atomic step in every CounterStore:
// a per-shard mutex in MemoryStore, an advisory-locked transaction in
// PostgresStore and a Lua script in RedisStore.
//
// Store calls run behind a Guard that bounds each call with a timeout and
// opens a circuit after repeated failures. A failing store denies the
// request unless Config.FailOpen is set.
package ratelimit
