package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// RowError reports the record of a merge batch that failed.
type RowError struct {
	// Index is the position of the failing record in the batch.
	Index int

	// Committed is how many records of the batch are durable in the table.
	// Always 0 for atomic merges.
	Committed int

	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d failed (%d committed): %v", e.Index, e.Committed, e.Err)
}

// Unwrap exposes both ErrWrite and the underlying cause to errors.Is/As.
func (e *RowError) Unwrap() []error {
	return []error{pgload.ErrWrite, e.Err}
}

// plan is everything derived once per record type.
type plan struct {
	table    string
	ident    pgx.Identifier
	columns  []string
	mergeSQL string
	encoder  encoder
}

// Writer implements pgload.BatchWriter against PostgreSQL.
//
// Thread-Safety: safe for concurrent use; every call acquires its own
// connection from the pool.
type Writer struct {
	conn            pgload.DBConnection
	namer           pgload.TableNamer
	logger          pgload.Logger
	timestampFormat string
	atomicMerge     bool

	mu    sync.RWMutex
	plans map[*pgload.RecordType]*plan
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. Defaults to a NullLogger.
func WithLogger(logger pgload.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTimestampFormat sets the Go layout used for timestamps in statement previews.
func WithTimestampFormat(layout string) Option {
	return func(w *Writer) {
		if layout != "" {
			w.timestampFormat = layout
		}
	}
}

// WithAtomicMerge makes Merge apply each batch in a single transaction.
func WithAtomicMerge(atomic bool) Option {
	return func(w *Writer) {
		w.atomicMerge = atomic
	}
}

// New creates a Writer.
// Panics if conn or namer is nil.
func New(conn pgload.DBConnection, namer pgload.TableNamer, opts ...Option) *Writer {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if namer == nil {
		panic("namer cannot be nil")
	}
	w := &Writer{
		conn:            conn,
		namer:           namer,
		logger:          logging.NewNullLogger(),
		timestampFormat: pgload.DefaultTimestampFormat,
		plans:           make(map[*pgload.RecordType]*plan),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Prepare derives and caches the plan for a record type. Calling it at
// startup turns unknown kinds into an immediate configuration error.
func (w *Writer) Prepare(rt *pgload.RecordType) error {
	_, err := w.plan(rt)
	return err
}

func (w *Writer) plan(rt *pgload.RecordType) (*plan, error) {
	if rt == nil {
		return nil, fmt.Errorf("batch has no record type: %w", pgload.ErrWrite)
	}

	w.mu.RLock()
	p, ok := w.plans[rt]
	w.mu.RUnlock()
	if ok {
		return p, nil
	}

	if err := rt.Validate(); err != nil {
		return nil, err
	}
	enc, err := newEncoder(rt)
	if err != nil {
		return nil, err
	}
	table := w.namer.TableName(rt.Name)
	p = &plan{
		table:    table,
		ident:    TableIdentifier(table),
		columns:  rt.Columns(),
		mergeSQL: MergeSQL(table, rt),
		encoder:  enc,
	}

	w.mu.Lock()
	if existing, ok := w.plans[rt]; ok {
		p = existing
	} else {
		w.plans[rt] = p
	}
	w.mu.Unlock()
	return p, nil
}

// Append streams the batch through one binary COPY.
// The batch is committed as a unit; any error aborts all of it.
func (w *Writer) Append(ctx context.Context, batch *pgload.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	p, err := w.plan(batch.Type)
	if err != nil {
		return err
	}

	conn, err := w.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	records := batch.Records
	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		row, err := p.encoder.row(records[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		return row, nil
	})

	n, err := conn.CopyFrom(ctx, p.ident, p.columns, src)
	if err != nil {
		return fmt.Errorf("copy into %s: %s: %w", p.table, describe(err), pgload.ErrWrite)
	}
	if int(n) != len(records) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows: %w", p.table, n, len(records), pgload.ErrWrite)
	}

	w.logger.Verbose("Copied %d rows into %s", n, p.table)
	return nil
}

// Merge upserts each record on the record type's key field, in batch order.
// Processing stops at the first failing record and returns a *RowError.
func (w *Writer) Merge(ctx context.Context, batch *pgload.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	p, err := w.plan(batch.Type)
	if err != nil {
		return err
	}

	conn, err := w.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if !w.atomicMerge {
		committed, err := w.mergeRows(ctx, conn, p, batch)
		if err != nil {
			return w.rowError(p, batch, committed, committed, err)
		}
		return nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin merge transaction: %s: %w", describe(err), pgload.ErrWrite)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied, err := w.mergeRows(ctx, tx, p, batch)
	if err != nil {
		return w.rowError(p, batch, applied, 0, err)
	}
	if err := tx.Commit(ctx); err != nil {
		w.logger.Error("Merge into %s failed to commit %s: %s", p.table, batch.SourceID, describe(err))
		return &RowError{Index: batch.Len() - 1, Committed: 0, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// mergeRows executes one statement per record and returns how many succeeded.
func (w *Writer) mergeRows(ctx context.Context, ex execer, p *plan, batch *pgload.Batch) (int, error) {
	for i, rec := range batch.Records {
		args, err := p.encoder.row(rec)
		if err != nil {
			return i, err
		}
		if _, err := ex.Exec(ctx, p.mergeSQL, args...); err != nil {
			return i, err
		}
	}
	w.logger.Verbose("Merged %d rows into %s", batch.Len(), p.table)
	return batch.Len(), nil
}

func (w *Writer) rowError(p *plan, batch *pgload.Batch, index, committed int, err error) error {
	preview := truncate(PreviewSQL(p.table, batch.Records[index], w.timestampFormat), pgload.MaxErrorPreviewLength)
	w.logger.Error("Merge into %s failed at row %d of %s: %s\n  %s", p.table, index, batch.SourceID, describe(err), preview)
	return &RowError{Index: index, Committed: committed, Err: err}
}

// describe surfaces PostgreSQL detail and SQLSTATE when available.
func describe(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Sprintf("%s: %s (SQLSTATE %s)", pgErr.Message, pgErr.Detail, pgErr.Code)
		}
		return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return err.Error()
}

var _ pgload.BatchWriter = (*Writer)(nil)
