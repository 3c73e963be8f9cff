package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vvka-141/pgload/internal/files/filesystem"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/queue"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Options configures a scanner run.
type Options struct {
	// Root is the directory tree to scan.
	Root string

	// Extension is matched case-insensitively against the file extension.
	Extension string

	// Workers is the size of the scanner pool.
	Workers int

	// MaxAwaiting is the queue length above which workers back off.
	// Zero or less selects pgload.DefaultMaxAwaiting.
	MaxAwaiting int

	// Backoff is how long a throttled worker sleeps before checking again.
	Backoff time.Duration
}

func (o *Options) applyDefaults() {
	if o.Extension == "" {
		o.Extension = pgload.DefaultExtension
	}
	if o.Workers < 1 {
		o.Workers = pgload.DefaultScanWorkers
	}
	if o.MaxAwaiting <= 0 {
		o.MaxAwaiting = pgload.DefaultMaxAwaiting
	}
	if o.Backoff <= 0 {
		o.Backoff = pgload.DefaultBackoff
	}
}

// Stats counts what the scanner did during a run.
type Stats struct {
	Claimed       int64
	Skipped       int64
	Enqueued      int64
	ParseFailures int64
	Removed       int64
}

// Scanner feeds a queue with batches parsed from files under a root directory.
//
// Thread-Safety: all methods are safe for concurrent use. File selection and
// claiming happen in one critical section shared by all workers.
type Scanner struct {
	opts       Options
	fsProvider filesystem.FileSystemProvider
	source     pgload.RecordSource
	queue      *queue.Queue
	logger     pgload.Logger
	notifier   pgload.Notifier

	mu      sync.Mutex
	claimed map[string]struct{}

	started  atomic.Bool
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	stats struct {
		claimed, skipped, enqueued, parseFailures, removed atomic.Int64
	}
}

// Option configures optional Scanner collaborators.
type Option func(*Scanner)

// WithFileSystem replaces the OS filesystem, mainly for tests.
func WithFileSystem(fsProvider filesystem.FileSystemProvider) Option {
	return func(s *Scanner) {
		if fsProvider != nil {
			s.fsProvider = fsProvider
		}
	}
}

// WithLogger sets the logger. Defaults to a NullLogger.
func WithLogger(logger pgload.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the receiver of FileClaimFailed notifications.
func WithNotifier(notifier pgload.Notifier) Option {
	return func(s *Scanner) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// NewScanner creates a scanner writing into q.
// Panics if source or q is nil.
func NewScanner(opts Options, source pgload.RecordSource, q *queue.Queue, options ...Option) *Scanner {
	if source == nil {
		panic("source cannot be nil")
	}
	if q == nil {
		panic("queue cannot be nil")
	}
	opts.applyDefaults()

	s := &Scanner{
		opts:       opts,
		fsProvider: filesystem.NewOSFileSystem(),
		source:     source,
		queue:      q,
		logger:     logging.NewNullLogger(),
		notifier:   pgload.NopNotifier{},
		claimed:    make(map[string]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Start launches the worker pool and returns immediately.
// The scanner stops running once every worker has exited, either because no
// unclaimed file is left, Cancel was called or ctx was canceled.
func (s *Scanner) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("scanner already started")
	}

	if _, err := s.fsProvider.Stat(s.opts.Root); err != nil {
		close(s.done)
		return fmt.Errorf("source directory %s: %w: %w", s.opts.Root, pgload.ErrInvalidConfig, err)
	}

	s.running.Store(true)
	s.logger.Verbose("Scanning %s for *%s with %d workers", s.opts.Root, s.opts.Extension, s.opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.work(ctx, id)
		}(i)
	}

	go func() {
		wg.Wait()
		s.running.Store(false)
		close(s.done)
		s.logger.Verbose("Scanner finished: %d claimed, %d enqueued, %d skipped, %d parse failures",
			s.stats.claimed.Load(), s.stats.enqueued.Load(), s.stats.skipped.Load(), s.stats.parseFailures.Load())
	}()

	return nil
}

// Cancel asks every worker to exit after its current step.
func (s *Scanner) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Running reports whether any worker may still enqueue.
// It turns false only after all workers have exited.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// Done is closed once all workers have exited.
func (s *Scanner) Done() <-chan struct{} {
	return s.done
}

// Stats returns a snapshot of the run counters.
func (s *Scanner) Stats() Stats {
	return Stats{
		Claimed:       s.stats.claimed.Load(),
		Skipped:       s.stats.skipped.Load(),
		Enqueued:      s.stats.enqueued.Load(),
		ParseFailures: s.stats.parseFailures.Load(),
		Removed:       s.stats.removed.Load(),
	}
}

func (s *Scanner) work(ctx context.Context, id int) {
	for !s.stopped(ctx) {
		if s.queue.Len() > s.opts.MaxAwaiting {
			s.logger.Verbose("scanner[%d]: queue above %d, backing off %s", id, s.opts.MaxAwaiting, s.opts.Backoff)
			s.sleep(ctx, s.opts.Backoff)
			continue
		}

		path, ok := s.claimNext()
		if !ok {
			s.logger.Verbose("scanner[%d]: no unclaimed files left", id)
			return
		}
		s.stats.claimed.Add(1)
		s.logger.Verbose("scanner[%d]: claimed %s", id, path)

		s.process(ctx, path)
	}
}

// process parses one claimed file and enqueues its batch.
// Unrelated files are skipped and stay claimed (and on disk) for the run.
func (s *Scanner) process(ctx context.Context, path string) {
	if !strings.EqualFold(filepath.Ext(path), s.opts.Extension) {
		s.stats.skipped.Add(1)
		s.logger.Verbose("Skipping %s: extension is not %s", path, s.opts.Extension)
		return
	}

	recordType, ok := s.source.Resolve(path)
	if !ok {
		s.stats.skipped.Add(1)
		s.logger.Verbose("Skipping %s: no record type matches the file name", path)
		return
	}

	records, err := s.parse(ctx, path, recordType)
	if err != nil {
		s.stats.parseFailures.Add(1)
		s.logger.Error("Failed to parse %s: %v", path, err)
		s.notifier.FileClaimFailed(path, err)
		return
	}

	s.queue.Enqueue(&pgload.Batch{SourceID: path, Type: recordType, Records: records})
	s.stats.enqueued.Add(1)
	s.logger.Verbose("Enqueued %s: %d %s records", path, len(records), recordType.Name)
}

func (s *Scanner) parse(ctx context.Context, path string, rt *pgload.RecordType) (records []pgload.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panicked: %v: %w", r, pgload.ErrParse)
		}
	}()
	return s.source.Parse(ctx, path, rt)
}

// claimNext selects and claims the first unclaimed file in depth-first order.
func (s *Scanner) claimNext() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUnclaimed(s.opts.Root)
}

// findUnclaimed must be called with s.mu held.
func (s *Scanner) findUnclaimed(dir string) (string, bool) {
	entries, err := s.fsProvider.ReadDir(dir)
	if err != nil {
		s.logger.Verbose("Cannot list %s: %v", dir, err)
		return "", false
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, taken := s.claimed[path]; !taken {
			s.claimed[path] = struct{}{}
			return path, true
		}
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if path, ok := s.findUnclaimed(filepath.Join(dir, e.Name())); ok {
			return path, true
		}
	}
	return "", false
}

// IsClaimed reports whether path is currently in the claim set.
func (s *Scanner) IsClaimed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claimed[path]
	return ok
}

// OnFileLoaded is the post-load cleanup hook.
// On success the file is deleted together with any parent directories it
// leaves empty (the root itself is kept), and the claim is released. On
// failure the file stays on disk and stays claimed for the rest of the run.
func (s *Scanner) OnFileLoaded(success bool, path string) {
	if !success {
		s.logger.Verbose("Keeping %s on disk after failed load", path)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fsProvider.Remove(path); err != nil {
		// Still claimed: releasing it would let this run load the file again.
		s.logger.Error("Failed to remove loaded file %s: %v", path, err)
		return
	}
	s.stats.removed.Add(1)
	delete(s.claimed, path)

	root := filepath.Clean(s.opts.Root)
	for dir := filepath.Dir(path); dir != root && isUnder(dir, root); dir = filepath.Dir(dir) {
		entries, err := s.fsProvider.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fsProvider.Remove(dir); err != nil {
			s.logger.Verbose("Failed to remove empty directory %s: %v", dir, err)
			return
		}
		s.logger.Verbose("Removed empty directory %s", dir)
	}
}

// BatchLoaded implements pgload.Notifier by deleting the loaded file.
func (s *Scanner) BatchLoaded(sourceID string, _ int) {
	s.OnFileLoaded(true, sourceID)
}

// BatchLoadFailed implements pgload.Notifier by keeping the file claimed.
func (s *Scanner) BatchLoadFailed(sourceID string, _ error) {
	s.OnFileLoaded(false, sourceID)
}

// FileClaimFailed implements pgload.Notifier. The scanner raised it itself.
func (s *Scanner) FileClaimFailed(string, error) {}

func (s *Scanner) stopped(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.stop:
	case <-ctx.Done():
	}
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

var _ pgload.Notifier = (*Scanner)(nil)
