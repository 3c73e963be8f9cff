package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgload/internal/files/filesystem"
	"github.com/vvka-141/pgload/internal/queue"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var itemType = &pgload.RecordType{
	Name:   "Item",
	Fields: []pgload.Field{{Name: "Id", Kind: pgload.KindInt32}},
}

// fakeSource resolves every file whose name does not start with "unknown"
// and turns each line of content into one record. Content "bad" fails,
// content "panic" panics.
type fakeSource struct {
	fs *filesystem.MemoryFileSystem

	mu     sync.Mutex
	parsed map[string]int
}

func newFakeSource(fs *filesystem.MemoryFileSystem) *fakeSource {
	return &fakeSource{fs: fs, parsed: make(map[string]int)}
}

func (f *fakeSource) Resolve(path string) (*pgload.RecordType, bool) {
	if strings.HasPrefix(filepath.Base(path), "unknown") {
		return nil, false
	}
	return itemType, true
}

func (f *fakeSource) Parse(_ context.Context, path string, rt *pgload.RecordType) ([]pgload.Record, error) {
	f.mu.Lock()
	f.parsed[path]++
	f.mu.Unlock()

	data, err := f.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	switch content {
	case "bad":
		return nil, fmt.Errorf("cannot parse: %w", pgload.ErrParse)
	case "panic":
		panic("boom")
	}

	var records []pgload.Record
	for i, line := range strings.Fields(content) {
		records = append(records, pgload.Record{Type: rt, Values: []any{int32(i), line}})
	}
	return records, nil
}

func (f *fakeSource) parseCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parsed[path]
}

type recordingNotifier struct {
	pgload.NopNotifier
	mu     sync.Mutex
	failed []string
}

func (n *recordingNotifier) FileClaimFailed(path string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, path)
}

type fixture struct {
	fs       *filesystem.MemoryFileSystem
	source   *fakeSource
	queue    *queue.Queue
	notifier *recordingNotifier
}

func newFixture() *fixture {
	fs := filesystem.NewMemoryFileSystem("/in")
	return &fixture{
		fs:       fs,
		source:   newFakeSource(fs),
		queue:    queue.New(),
		notifier: &recordingNotifier{},
	}
}

// scanner builds a scanner over the fixture. Tests that do not exercise
// backpressure never drain the queue, so the threshold is raised above any
// fixture's file count and the backoff kept short.
func (f *fixture) scanner(opts Options) *Scanner {
	if opts.Root == "" {
		opts.Root = "/in"
	}
	if opts.MaxAwaiting == 0 {
		opts.MaxAwaiting = 1000
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return NewScanner(opts, f.source, f.queue, WithFileSystem(f.fs), WithNotifier(f.notifier))
}

func (f *fixture) drain() []*pgload.Batch {
	var out []*pgload.Batch
	for {
		b, ok := f.queue.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func run(t *testing.T, s *Scanner) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scanner did not finish")
	}
	assert.False(t, s.Running())
}

func sourceIDs(batches []*pgload.Batch) []string {
	ids := make([]string, len(batches))
	for i, b := range batches {
		ids[i] = b.SourceID
	}
	return ids
}

func TestNewScanner_NilArgs(t *testing.T) {
	f := newFixture()
	assert.Panics(t, func() { NewScanner(Options{}, nil, f.queue) })
	assert.Panics(t, func() { NewScanner(Options{}, f.source, nil) })
}

func TestScanner_DepthFirstFilesBeforeSubdirs(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("b.xml", "1")
	f.fs.AddFile("a.xml", "1")
	f.fs.AddFile("sub/z.xml", "1")
	f.fs.AddFile("sub/deep/y.xml", "1")
	f.fs.AddFile("sub2/x.xml", "1")
	f.fs.AddFile("c.xml", "1")

	run(t, f.scanner(Options{Extension: ".xml", Workers: 1}))

	assert.Equal(t, []string{
		"/in/a.xml", "/in/b.xml", "/in/c.xml",
		"/in/sub/z.xml", "/in/sub/deep/y.xml",
		"/in/sub2/x.xml",
	}, sourceIDs(f.drain()))
}

func TestScanner_EachFileClaimedExactlyOnce(t *testing.T) {
	f := newFixture()
	for d := 0; d < 5; d++ {
		for i := 0; i < 40; i++ {
			f.fs.AddFile(fmt.Sprintf("d%d/f%03d.xml", d, i), "x y")
		}
	}

	s := f.scanner(Options{Extension: ".xml", Workers: 8, MaxAwaiting: 1000})
	run(t, s)

	batches := f.drain()
	require.Len(t, batches, 200)

	seen := make(map[string]bool)
	for _, b := range batches {
		assert.False(t, seen[b.SourceID], "duplicate batch for %s", b.SourceID)
		seen[b.SourceID] = true
		assert.Equal(t, 1, f.source.parseCount(b.SourceID))
		assert.Equal(t, 2, b.Len())
		assert.Same(t, itemType, b.Type)
	}
	assert.Equal(t, int64(200), s.Stats().Claimed)
	assert.Equal(t, int64(200), s.Stats().Enqueued)
}

func TestScanner_RecordOrderPreserved(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a.xml", "first second third")

	run(t, f.scanner(Options{Extension: ".xml", Workers: 1}))

	batches := f.drain()
	require.Len(t, batches, 1)
	var got []any
	for _, r := range batches[0].Records {
		got = append(got, r.Values[1])
	}
	assert.Equal(t, []any{"first", "second", "third"}, got)
}

func TestScanner_UnrelatedFilesSkippedAndScanContinues(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a.txt", "1")
	f.fs.AddFile("b.XML", "1")
	f.fs.AddFile("unknown.xml", "1")
	f.fs.AddFile("z.xml", "1")

	s := f.scanner(Options{Extension: ".xml", Workers: 1})
	run(t, s)

	assert.Equal(t, []string{"/in/b.XML", "/in/z.xml"}, sourceIDs(f.drain()))
	assert.Equal(t, int64(2), s.Stats().Skipped)

	// Stray files stay on disk and stay claimed.
	assert.True(t, f.fs.Exists("/in/a.txt"))
	assert.True(t, f.fs.Exists("/in/unknown.xml"))
	assert.True(t, s.IsClaimed("/in/unknown.xml"))
	assert.Zero(t, f.source.parseCount("/in/unknown.xml"))
}

func TestScanner_ParseFailureNotifiesAndKeepsClaim(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a.xml", "bad")
	f.fs.AddFile("b.xml", "panic")
	f.fs.AddFile("c.xml", "ok")

	s := f.scanner(Options{Extension: ".xml", Workers: 2})
	run(t, s)

	assert.Equal(t, []string{"/in/c.xml"}, sourceIDs(f.drain()))
	assert.ElementsMatch(t, []string{"/in/a.xml", "/in/b.xml"}, f.notifier.failed)
	assert.Equal(t, int64(2), s.Stats().ParseFailures)
	assert.True(t, s.IsClaimed("/in/a.xml"))
	assert.True(t, f.fs.Exists("/in/a.xml"))
	assert.Equal(t, 1, f.source.parseCount("/in/a.xml"))
}

func TestScanner_EmptyFileStillEnqueued(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("b.ext", "")

	run(t, f.scanner(Options{Extension: ".ext", Workers: 1}))

	batches := f.drain()
	require.Len(t, batches, 1)
	assert.Equal(t, 0, batches[0].Len())
}

func TestScanner_Backpressure(t *testing.T) {
	f := newFixture()
	for i := 0; i < 10; i++ {
		f.fs.AddFile(fmt.Sprintf("f%02d.xml", i), "1")
	}

	const maxAwaiting, workers = 2, 1
	s := f.scanner(Options{Extension: ".xml", Workers: workers, MaxAwaiting: maxAwaiting, Backoff: 5 * time.Millisecond})
	require.NoError(t, s.Start(context.Background()))

	// Without a consumer the queue settles just above the threshold.
	require.Eventually(t, func() bool { return f.queue.Len() == maxAwaiting+1 }, 2*time.Second, time.Millisecond)
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, f.queue.Len(), maxAwaiting+workers)
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, s.Running())

	// Draining lets the scanner resume until every file is enqueued.
	var got []*pgload.Batch
	deadline := time.After(5 * time.Second)
	for len(got) < 10 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 10 batches arrived", len(got))
		default:
		}
		assert.LessOrEqual(t, f.queue.Len(), maxAwaiting+workers)
		got = append(got, f.drain()...)
		time.Sleep(time.Millisecond)
	}

	<-s.Done()
	assert.Len(t, got, 10)
}

func TestScanner_CancelInterruptsBackoff(t *testing.T) {
	f := newFixture()
	for i := 0; i < 5; i++ {
		f.fs.AddFile(fmt.Sprintf("f%d.xml", i), "1")
	}

	s := f.scanner(Options{Extension: ".xml", Workers: 2, MaxAwaiting: 1, Backoff: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return f.queue.Len() > 1 }, time.Second, time.Millisecond)

	s.Cancel()
	s.Cancel() // idempotent

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not stop the scanner")
	}
	assert.False(t, s.Running())
	assert.Less(t, f.queue.Len(), 5)
}

func TestScanner_ContextCancel(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a.xml", "1")
	f.fs.AddFile("b.xml", "1")
	f.fs.AddFile("c.xml", "1")

	ctx, cancel := context.WithCancel(context.Background())
	s := f.scanner(Options{Extension: ".xml", Workers: 1, MaxAwaiting: 1, Backoff: time.Hour})
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return f.queue.Len() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context cancel did not stop the scanner")
	}
}

func TestOptions_ApplyDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero values",
			in:   Options{},
			want: Options{
				Extension:   pgload.DefaultExtension,
				Workers:     pgload.DefaultScanWorkers,
				MaxAwaiting: pgload.DefaultMaxAwaiting,
				Backoff:     pgload.DefaultBackoff,
			},
		},
		{
			name: "negative values",
			in:   Options{Workers: -1, MaxAwaiting: -1, Backoff: -time.Second},
			want: Options{
				Extension:   pgload.DefaultExtension,
				Workers:     pgload.DefaultScanWorkers,
				MaxAwaiting: pgload.DefaultMaxAwaiting,
				Backoff:     pgload.DefaultBackoff,
			},
		},
		{
			name: "explicit values kept",
			in:   Options{Extension: ".ext", Workers: 2, MaxAwaiting: 1, Backoff: time.Millisecond},
			want: Options{Extension: ".ext", Workers: 2, MaxAwaiting: 1, Backoff: time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.in
			opts.applyDefaults()
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestScanner_DefaultThresholdMatchesLoadConfig(t *testing.T) {
	var cfg pgload.LoadConfig
	cfg.ApplyDefaults()

	opts := Options{MaxAwaiting: 0}
	opts.applyDefaults()

	assert.Equal(t, cfg.MaxAwaiting, opts.MaxAwaiting)
}

func TestScanner_StartErrors(t *testing.T) {
	f := newFixture()
	s := f.scanner(Options{Root: "/missing"})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
	<-s.Done()

	s = f.scanner(Options{})
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	<-s.Done()
}

func TestScanner_OnFileLoaded_RemovesFileAndEmptyParents(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a/b/c/data.xml", "1")
	f.fs.AddFile("a/keep.txt", "x")

	s := f.scanner(Options{Extension: ".xml", Workers: 1})
	run(t, s)
	require.True(t, s.IsClaimed("/in/a/b/c/data.xml"))

	s.OnFileLoaded(true, "/in/a/b/c/data.xml")

	assert.False(t, f.fs.Exists("/in/a/b/c/data.xml"))
	assert.False(t, f.fs.Exists("/in/a/b/c"))
	assert.False(t, f.fs.Exists("/in/a/b"))
	assert.True(t, f.fs.Exists("/in/a"), "directory with remaining files is kept")
	assert.True(t, f.fs.Exists("/in/a/keep.txt"))
	assert.False(t, s.IsClaimed("/in/a/b/c/data.xml"))
	assert.Equal(t, int64(1), s.Stats().Removed)
}

func TestScanner_OnFileLoaded_KeepsRoot(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("only.xml", "1")

	s := f.scanner(Options{Extension: ".xml", Workers: 1})
	run(t, s)
	s.BatchLoaded("/in/only.xml", 1)

	assert.False(t, f.fs.Exists("/in/only.xml"))
	assert.True(t, f.fs.Exists("/in"))
}

func TestScanner_OnFileLoaded_FailureKeepsFileAndClaim(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("sub/a.xml", "1")

	s := f.scanner(Options{Extension: ".xml", Workers: 1})
	run(t, s)
	s.BatchLoadFailed("/in/sub/a.xml", errors.New("duplicate key"))

	assert.True(t, f.fs.Exists("/in/sub/a.xml"))
	assert.True(t, s.IsClaimed("/in/sub/a.xml"))
}

func TestScanner_OnFileLoaded_RemoveErrorKeepsClaim(t *testing.T) {
	f := newFixture()
	f.fs.AddFile("a.xml", "1")

	s := f.scanner(Options{Extension: ".xml", Workers: 1})
	run(t, s)

	require.NoError(t, f.fs.Remove("/in/a.xml"))
	s.OnFileLoaded(true, "/in/a.xml")

	assert.True(t, s.IsClaimed("/in/a.xml"))
	assert.Zero(t, s.Stats().Removed)
}
