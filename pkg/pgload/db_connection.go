package pgload

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection is the opaque connection handle used by the database writer.
// Each write operation acquires one connection and releases it when done,
// so the implementation should be a pool.
//
// Thread-Safety: implementations must be safe for concurrent use.
type DBConnection interface {
	// Acquire obtains a dedicated connection.
	// Caller must call Release() on the returned PooledConnection when done.
	Acquire(ctx context.Context) (PooledConnection, error)
}

// PooledConnection represents a connection acquired from a pool.
// The caller must call Release() when done to return it to the pool.
type PooledConnection interface {
	// Exec executes a statement on this specific connection.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// CopyFrom streams rows through the binary COPY protocol as one statement.
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) (pgx.Tx, error)

	// Release returns the connection to the pool.
	// After calling Release, the connection should not be used.
	Release()
}
