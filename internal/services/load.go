package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/dispatcher"
	"github.com/vvka-141/pgload/internal/files/filesystem"
	"github.com/vvka-141/pgload/internal/files/scanner"
	"github.com/vvka-141/pgload/internal/files/source"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/queue"
	"github.com/vvka-141/pgload/internal/schema"
	"github.com/vvka-141/pgload/internal/writer"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// ConnectorFactory builds a connector for the resolved connection settings.
// db.NewConnector is the production implementation.
type ConnectorFactory func(*pgload.ConnectionConfig, ...db.ConnectorOption) (pgload.Connector, error)

// LoadService runs one scan-and-load pass: it connects, prepares the writer
// for every registered record type, then runs the scanner and the
// dispatcher until the source tree is drained.
//
// Thread-Safety: NOT safe for concurrent Run() calls on the same instance.
// Create separate instances for concurrent runs.
type LoadService struct {
	connectorFactory ConnectorFactory
	logger           pgload.Logger
	fsProvider       filesystem.FileSystemProvider
	notifiers        pgload.Notifiers
	pollInterval     time.Duration

	scanner    *scanner.Scanner
	dispatcher *dispatcher.Dispatcher
}

// Option configures optional LoadService collaborators.
type Option func(*LoadService)

// WithFileSystem replaces the OS filesystem used for scanning, parsing and cleanup.
func WithFileSystem(fsProvider filesystem.FileSystemProvider) Option {
	return func(s *LoadService) {
		if fsProvider != nil {
			s.fsProvider = fsProvider
		}
	}
}

// WithNotifier adds a receiver of per-file outcomes, such as a progress view.
func WithNotifier(n pgload.Notifier) Option {
	return func(s *LoadService) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithPollInterval overrides how often idle dispatcher workers re-check the scanner.
func WithPollInterval(interval time.Duration) Option {
	return func(s *LoadService) {
		s.pollInterval = interval
	}
}

// NewLoadService creates a LoadService.
// Panics if connectorFactory or logger is nil.
func NewLoadService(connectorFactory ConnectorFactory, logger pgload.Logger, opts ...Option) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	s := &LoadService{
		connectorFactory: connectorFactory,
		logger:           logger,
		fsProvider:       filesystem.NewOSFileSystem(),
		pollInterval:     pgload.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one load run. The summary is valid whenever the pipeline
// started, including runs that end with ErrLoadIncomplete or a timeout.
func (s *LoadService) Run(ctx context.Context, cfg pgload.LoadConfig) (pgload.RunSummary, error) {
	started := time.Now()

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return pgload.RunSummary{}, fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return pgload.RunSummary{}, err
	}
	s.logger.Verbose("Loaded %d record types from %s", len(registry.Names()), cfg.SchemaPath)

	connConfig, err := connectionConfigFor(cfg)
	if err != nil {
		return pgload.RunSummary{}, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	connector, err := s.connectorFactory(connConfig, db.WithLogger(s.logger), db.WithMaxConns(cfg.LoadWorkers))
	if err != nil {
		return pgload.RunSummary{}, fmt.Errorf("failed to create connector: %w", err)
	}
	if closer, ok := connector.(io.Closer); ok {
		defer closer.Close()
	}

	s.logger.Verbose("Connecting to %s:%d/%s (%s)", connConfig.Host, connConfig.Port, connConfig.Database, connConfig.AuthMethod)
	pool, err := connector.Connect(ctx)
	if err != nil {
		return pgload.RunSummary{}, err
	}
	defer pool.Close()

	w := writer.New(db.NewPoolAdapter(pool), registry,
		writer.WithLogger(s.logger),
		writer.WithTimestampFormat(cfg.TimestampFormat),
		writer.WithAtomicMerge(cfg.AtomicMerge),
	)
	if err := prepareWriter(w, registry); err != nil {
		return pgload.RunSummary{}, err
	}

	return s.runPipeline(ctx, cfg, registry, w, started)
}

// Running reports whether the scanner or the dispatcher of the current run
// still has active workers.
func (s *LoadService) Running() (scanning, loading bool) {
	if s.scanner != nil {
		scanning = s.scanner.Running()
	}
	if s.dispatcher != nil {
		loading = s.dispatcher.Running()
	}
	return scanning, loading
}

func (s *LoadService) runPipeline(
	ctx context.Context,
	cfg pgload.LoadConfig,
	registry *schema.Registry,
	w pgload.BatchWriter,
	started time.Time,
) (pgload.RunSummary, error) {
	q := queue.New()
	src := source.NewXMLSource(s.fsProvider, registry)

	s.scanner = scanner.NewScanner(scanner.Options{
		Root:        cfg.SourcePath,
		Extension:   cfg.Extension,
		Workers:     cfg.ScanWorkers,
		MaxAwaiting: cfg.MaxAwaiting,
		Backoff:     cfg.Backoff,
	}, src, q,
		scanner.WithFileSystem(s.fsProvider),
		scanner.WithLogger(s.logger),
		scanner.WithNotifier(s.notifiers),
	)

	// The scanner comes first so a loaded file is removed before anyone
	// else hears about it.
	outcomes := append(pgload.Notifiers{s.scanner, logging.NewNotifier(s.logger)}, s.notifiers...)
	s.dispatcher = dispatcher.New(q, w, s.scanner,
		dispatcher.WithWorkers(cfg.LoadWorkers),
		dispatcher.WithPollInterval(s.pollInterval),
		dispatcher.WithLogger(s.logger),
		dispatcher.WithNotifier(outcomes),
	)

	// The dispatcher's exit condition watches the scanner, so the scanner
	// must be running before any load worker starts.
	if err := s.scanner.Start(ctx); err != nil {
		return pgload.RunSummary{}, err
	}
	if err := s.dispatcher.Start(ctx, cfg.Mode); err != nil {
		s.scanner.Cancel()
		<-s.scanner.Done()
		return pgload.RunSummary{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return awaitWorkers(gctx, s.scanner.Done(), s.scanner.Cancel) })
	g.Go(func() error { return awaitWorkers(gctx, s.dispatcher.Done(), s.dispatcher.Cancel) })
	waitErr := g.Wait()

	summary := s.summarize(started)
	s.logger.Info("Loaded %d files (%d rows) in %v; %d failed to load, %d failed to parse, %d skipped",
		summary.BatchesLoaded, summary.RowsWritten, summary.Duration.Round(time.Millisecond),
		summary.BatchesFailed, summary.ParseFailures, summary.FilesSkipped)

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			return summary, fmt.Errorf("run timed out after %v: %w", cfg.Timeout, pgload.ErrLoadIncomplete)
		}
		return summary, fmt.Errorf("run interrupted: %w", waitErr)
	}
	if summary.Failed() {
		return summary, fmt.Errorf("%d files failed to parse and %d batches failed to load: %w",
			summary.ParseFailures, summary.BatchesFailed, pgload.ErrLoadIncomplete)
	}
	return summary, nil
}

func (s *LoadService) summarize(started time.Time) pgload.RunSummary {
	scanStats := s.scanner.Stats()
	loadStats := s.dispatcher.Stats()
	return pgload.RunSummary{
		FilesClaimed:  scanStats.Claimed,
		FilesSkipped:  scanStats.Skipped,
		ParseFailures: scanStats.ParseFailures,
		BatchesLoaded: loadStats.Loaded,
		BatchesFailed: loadStats.Failed,
		RowsWritten:   loadStats.Rows,
		Duration:      time.Since(started),
	}
}

// awaitWorkers blocks until done is closed. If ctx ends first the workers are
// canceled and still awaited, so no goroutine outlives the run.
func awaitWorkers(ctx context.Context, done <-chan struct{}, cancel func()) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// connectionConfigFor parses the connection string and overlays the auth
// settings carried by the load configuration.
func connectionConfigFor(cfg pgload.LoadConfig) (*pgload.ConnectionConfig, error) {
	connConfig, err := db.ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if connConfig.AppName == "" {
		connConfig.AppName = "pgload"
	}

	connConfig.AuthMethod = cfg.AuthMethod
	connConfig.AzureTenantID = cfg.AzureTenantID
	connConfig.AzureClientID = cfg.AzureClientID
	connConfig.AzureClientSecret = cfg.AzureClientSecret
	connConfig.AWSRegion = cfg.AWSRegion
	connConfig.GoogleInstance = cfg.GoogleInstance
	return connConfig, nil
}

// prepareWriter derives every statement up front so an unmappable kind fails
// the run before any file is claimed.
func prepareWriter(w *writer.Writer, registry *schema.Registry) error {
	var errs []error
	for _, name := range registry.Names() {
		rt, err := registry.Lookup(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := w.Prepare(rt); err != nil {
			errs = append(errs, fmt.Errorf("record type %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
