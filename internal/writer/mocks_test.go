package writer

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/pgload/pkg/pgload"
)

type execCall struct {
	sql  string
	args []any
	inTx bool
}

// mockDB records every statement. failAt makes the n-th Exec (0-based,
// counted across the whole mock) fail with failErr.
type mockDB struct {
	mu sync.Mutex

	acquireErr error
	copyErr    error
	failAt     int
	failErr    error
	commitErr  error

	copyTable   pgx.Identifier
	copyColumns []string
	copyRows    [][]any
	execs       []execCall
	committed   []execCall
	released    int
	began       int
	rolledBack  int
}

func newMockDB() *mockDB {
	return &mockDB{failAt: -1}
}

func (m *mockDB) Acquire(_ context.Context) (pgload.PooledConnection, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return &mockConn{db: m}, nil
}

func (m *mockDB) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.execs) == m.failAt {
		m.execs = append(m.execs, execCall{sql: sql, args: args, inTx: inTx})
		return pgconn.CommandTag{}, m.failErr
	}
	call := execCall{sql: sql, args: args, inTx: inTx}
	m.execs = append(m.execs, call)
	if !inTx {
		m.committed = append(m.committed, call)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type mockConn struct {
	db *mockDB
}

func (c *mockConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.db.exec(sql, args, false)
}

func (c *mockConn) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error) {
	m := c.db
	m.mu.Lock()
	defer m.mu.Unlock()

	m.copyTable = table
	m.copyColumns = columns

	var staged [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return 0, err
		}
		staged = append(staged, vals)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if m.copyErr != nil {
		return 0, m.copyErr
	}
	m.copyRows = append(m.copyRows, staged...)
	return int64(len(staged)), nil
}

func (c *mockConn) Begin(_ context.Context) (pgx.Tx, error) {
	c.db.mu.Lock()
	c.db.began++
	c.db.mu.Unlock()
	return &mockTx{db: c.db}, nil
}

func (c *mockConn) Release() {
	c.db.mu.Lock()
	c.db.released++
	c.db.mu.Unlock()
}

// mockTx implements the subset of pgx.Tx the writer uses.
type mockTx struct {
	pgx.Tx
	db      *mockDB
	pending []execCall
	done    bool
}

func (t *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := t.db.exec(sql, args, true)
	if err == nil {
		t.pending = append(t.pending, execCall{sql: sql, args: args, inTx: true})
	}
	return tag, err
}

func (t *mockTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.db.mu.Lock()
	t.db.committed = append(t.db.committed, t.pending...)
	t.db.mu.Unlock()
	return nil
}

func (t *mockTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Lock()
	t.db.rolledBack++
	t.db.mu.Unlock()
	return nil
}

type fixedNamer string

func (n fixedNamer) TableName(string) string { return string(n) }

var errDuplicate = errors.New("duplicate key")
