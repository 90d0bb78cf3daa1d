// Package database narrows the store surface the job and run repositories
// depend on, so tests run against an in-memory fake instead of postgres.
package database

import (
	"context"
	"database/sql"
)

// DB is the pooled connection handle. Exec reports rows affected, which the
// upsert path relies on to tell an insert from a conflict no-op. SQLDB
// exposes a database/sql view of the same pool for the migration runner.
type DB interface {
	Ping(ctx context.Context) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Begin(ctx context.Context) (Tx, error)

	SQLDB() *sql.DB
}

type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows mirrors the pgx iteration contract: Next, Scan, then Err after the
// loop; Close is safe to defer immediately.
type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}
