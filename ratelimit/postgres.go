package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DBTX is the subset of *sql.DB the Postgres store needs.
type DBTX interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
}

// PostgresStore keeps counters in the rate_limits table.
//
// Each UpsertIncrement runs in one transaction that first takes a
// transaction-scoped advisory lock on the identity. The lock serializes
// callers even when no row exists yet, which row locks alone cannot do.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a PostgresStore over db (typically opened with the pgx driver).
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	pgLockIdentity = `SELECT pg_advisory_xact_lock(hashtext($1))`

	pgSelectActive = `SELECT id, requests, timestamp FROM rate_limits
		WHERE identifier = $1 AND timestamp > $2
		ORDER BY timestamp DESC
		LIMIT 1`

	pgInsertCounter = `INSERT INTO rate_limits (identifier, requests, timestamp)
		VALUES ($1, 1, $2)`

	pgIncrementCounter = `UPDATE rate_limits SET requests = requests + 1, timestamp = $2
		WHERE id = $1
		RETURNING requests, timestamp`

	pgPrune = `DELETE FROM rate_limits WHERE timestamp <= $1`
)

// FindActive implements CounterStore.
func (s *PostgresStore) FindActive(ctx context.Context, identity string, windowStart time.Time) (Counter, bool, error) {
	c := Counter{Identity: identity}
	var id int64
	err := s.db.QueryRowContext(ctx, pgSelectActive, identity, windowStart).Scan(&id, &c.Count, &c.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Counter{}, false, nil
		}
		return Counter{}, false, fmt.Errorf("db error: %w", err)
	}
	return c, true, nil
}

// UpsertIncrement implements CounterStore.
func (s *PostgresStore) UpsertIncrement(ctx context.Context, identity string, now, windowStart time.Time) (c Counter, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Counter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, pgLockIdentity, identity); err != nil {
		return Counter{}, fmt.Errorf("lock identity: %w", err)
	}

	c = Counter{Identity: identity}
	var id int64
	var ts time.Time
	err = tx.QueryRowContext(ctx, pgSelectActive+" FOR UPDATE", identity, windowStart).Scan(&id, &c.Count, &ts)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx, pgInsertCounter, identity, now); err != nil {
			return Counter{}, fmt.Errorf("insert counter: %w", err)
		}
		c.Count, c.Timestamp = 1, now
	case err != nil:
		return Counter{}, fmt.Errorf("select counter: %w", err)
	default:
		if err = tx.QueryRowContext(ctx, pgIncrementCounter, id, now).Scan(&c.Count, &c.Timestamp); err != nil {
			return Counter{}, fmt.Errorf("increment counter: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Counter{}, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

// Prune implements Pruner.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, pgPrune, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

// Ping implements Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ CounterStore = (*PostgresStore)(nil)
	_ Pruner       = (*PostgresStore)(nil)
	_ Pinger       = (*PostgresStore)(nil)
)
