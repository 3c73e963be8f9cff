package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/queue"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Producer is whatever feeds the queue. The dispatcher keeps its workers
// alive while the producer is running or the queue is non-empty.
type Producer interface {
	Running() bool
}

// Stats counts what the dispatcher did during a run.
type Stats struct {
	Loaded int64
	Failed int64
	Rows   int64
}

// Dispatcher drains a queue into a BatchWriter with a pool of workers.
//
// Every dequeued batch produces exactly one BatchLoaded or BatchLoadFailed
// notification, and its records are released afterwards either way.
// Batches still queued when the run is canceled are left untouched.
//
// Thread-Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	queue        *queue.Queue
	writer       pgload.BatchWriter
	producer     Producer
	workers      int
	pollInterval time.Duration
	logger       pgload.Logger
	notifier     pgload.Notifier

	started  atomic.Bool
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	stats struct {
		loaded, failed, rows atomic.Int64
	}
}

// Option configures optional Dispatcher collaborators.
type Option func(*Dispatcher)

// WithWorkers sets the pool size. Defaults to pgload.DefaultLoadWorkers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithPollInterval bounds how long an idle worker waits for the queue before
// checking whether the producer is still running.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithLogger sets the logger. Defaults to a NullLogger.
func WithLogger(logger pgload.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNotifier sets the receiver of per-batch outcomes.
func WithNotifier(notifier pgload.Notifier) Option {
	return func(d *Dispatcher) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// New creates a dispatcher reading from q and writing through w.
// Panics if any argument is nil.
func New(q *queue.Queue, w pgload.BatchWriter, producer Producer, options ...Option) *Dispatcher {
	if q == nil {
		panic("queue cannot be nil")
	}
	if w == nil {
		panic("writer cannot be nil")
	}
	if producer == nil {
		panic("producer cannot be nil")
	}

	d := &Dispatcher{
		queue:        q,
		writer:       w,
		producer:     producer,
		workers:      pgload.DefaultLoadWorkers,
		pollInterval: pgload.DefaultPollInterval,
		logger:       logging.NewNullLogger(),
		notifier:     pgload.NopNotifier{},
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// StartBulk runs the workers with the Bulk-Append strategy.
func (d *Dispatcher) StartBulk(ctx context.Context) error {
	return d.Start(ctx, pgload.ModeBulk)
}

// StartMerge runs the workers with the Merge-Upsert strategy.
func (d *Dispatcher) StartMerge(ctx context.Context) error {
	return d.Start(ctx, pgload.ModeMerge)
}

// Start launches the worker pool with one strategy for the whole run and
// returns immediately. A dispatcher can be started once.
func (d *Dispatcher) Start(ctx context.Context, mode pgload.LoadMode) error {
	if mode != pgload.ModeBulk && mode != pgload.ModeMerge {
		return fmt.Errorf("unknown load mode %v: %w", mode, pgload.ErrInvalidConfig)
	}
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("dispatcher already started")
	}

	d.running.Store(true)
	d.logger.Verbose("Dispatching with %d workers in %s mode", d.workers, mode)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.work(ctx, id, mode)
		}(i)
	}

	go func() {
		wg.Wait()
		d.running.Store(false)
		close(d.done)
		d.logger.Verbose("Dispatcher finished: %d loaded, %d failed, %d rows",
			d.stats.loaded.Load(), d.stats.failed.Load(), d.stats.rows.Load())
	}()

	return nil
}

// Cancel asks every worker to exit after its current batch.
func (d *Dispatcher) Cancel() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Running reports whether any worker is still active.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Done is closed once all workers have exited. It is never closed for a
// dispatcher that was not started.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Stats returns a snapshot of the run counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Loaded: d.stats.loaded.Load(),
		Failed: d.stats.failed.Load(),
		Rows:   d.stats.rows.Load(),
	}
}

func (d *Dispatcher) work(ctx context.Context, id int, mode pgload.LoadMode) {
	for !d.stopped(ctx) {
		batch, ok := d.queue.TryDequeue()
		if ok {
			d.load(ctx, id, mode, batch)
			continue
		}

		// Running turns false only after the producer's last enqueue, so an
		// empty queue observed afterwards stays empty.
		if !d.producer.Running() && d.queue.Len() == 0 {
			return
		}
		d.queue.Wait(ctx, d.pollInterval)
	}
}

func (d *Dispatcher) load(ctx context.Context, id int, mode pgload.LoadMode, batch *pgload.Batch) {
	rows := batch.Len()
	start := time.Now()
	d.logger.Verbose("loader[%d]: writing %s (%d rows)", id, batch.SourceID, rows)

	err := d.write(ctx, mode, batch)
	batch.Clear()

	if err != nil {
		d.stats.failed.Add(1)
		d.notifier.BatchLoadFailed(batch.SourceID, err)
		return
	}

	d.stats.loaded.Add(1)
	d.stats.rows.Add(int64(rows))
	d.logger.Verbose("loader[%d]: wrote %s in %v", id, batch.SourceID, time.Since(start).Round(time.Millisecond))
	d.notifier.BatchLoaded(batch.SourceID, rows)
}

func (d *Dispatcher) write(ctx context.Context, mode pgload.LoadMode, batch *pgload.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panicked: %v: %w", r, pgload.ErrWrite)
		}
	}()
	return pgload.Write(ctx, d.writer, mode, batch)
}

func (d *Dispatcher) stopped(ctx context.Context) bool {
	select {
	case <-d.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
