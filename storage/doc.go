// Package storage opens the backing services: Postgres through the pgx
// database/sql driver with goose migrations, and Redis through go-redis.
package storage
