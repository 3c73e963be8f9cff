package services

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/pkg/pgload"
)

type mockConnector struct {
	pool   *pgxpool.Pool
	err    error
	closed bool
}

func (m *mockConnector) Connect(_ context.Context) (*pgxpool.Pool, error) {
	return m.pool, m.err
}

func (m *mockConnector) Close() error {
	m.closed = true
	return nil
}

// recordingFactory captures the connection settings and options the service
// resolved before handing out its connector.
type recordingFactory struct {
	connector pgload.Connector
	err       error

	mu     sync.Mutex
	config *pgload.ConnectionConfig
	opts   int
}

func (f *recordingFactory) build(cfg *pgload.ConnectionConfig, opts ...db.ConnectorOption) (pgload.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
	f.opts = len(opts)
	return f.connector, f.err
}
