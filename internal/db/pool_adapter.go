package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// PoolAdapter adapts *pgxpool.Pool to implement the pgload.DBConnection interface.
// The writer only sees acquired connections, so COPY and transactions always
// run on a single dedicated session.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter creates a new PoolAdapter wrapping the given pool.
func NewPoolAdapter(pool *pgxpool.Pool) pgload.DBConnection {
	if pool == nil {
		panic("pool cannot be nil")
	}
	return &PoolAdapter{pool: pool}
}

// Acquire obtains a dedicated connection from the pool.
func (p *PoolAdapter) Acquire(ctx context.Context) (pgload.PooledConnection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pooledConnAdapter{conn: conn}, nil
}

// pooledConnAdapter adapts *pgxpool.Conn to implement pgload.PooledConnection.
type pooledConnAdapter struct {
	conn *pgxpool.Conn
}

func (p *pooledConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p *pooledConnAdapter) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error) {
	return p.conn.CopyFrom(ctx, table, columns, rows)
}

func (p *pooledConnAdapter) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.conn.Begin(ctx)
}

// Release returns the connection to the pool.
func (p *pooledConnAdapter) Release() {
	p.conn.Release()
}

var _ pgload.DBConnection = (*PoolAdapter)(nil)
var _ pgload.PooledConnection = (*pooledConnAdapter)(nil)
