// Package cache memoizes paginated query results.
//
// Results are keyed by a deterministic digest of the normalized query and
// grouped under a scope ("public" or "user:<subject>") so one owner's pages
// can be evicted without touching another's. The in-memory store is a
// bounded LRU with an optional TTL. Loader collapses concurrent misses for
// the same key into a single computation and never stores failures.
package cache
