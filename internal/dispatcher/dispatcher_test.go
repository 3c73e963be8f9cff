package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgload/internal/queue"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var itemType = &pgload.RecordType{
	Name:   "Item",
	Fields: []pgload.Field{{Name: "Id", Kind: pgload.KindInt32}},
}

func batch(id string, rows int) *pgload.Batch {
	b := &pgload.Batch{SourceID: id, Type: itemType}
	for i := 0; i < rows; i++ {
		b.Records = append(b.Records, pgload.Record{Type: itemType, Values: []any{int32(i)}})
	}
	return b
}

// fakeWriter fails batches whose SourceID starts with "bad" and panics on
// those starting with "panic".
type fakeWriter struct {
	mu      sync.Mutex
	appends []string
	merges  []string
	delay   time.Duration
}

func (w *fakeWriter) Append(ctx context.Context, b *pgload.Batch) error {
	return w.write(ctx, b, &w.appends)
}

func (w *fakeWriter) Merge(ctx context.Context, b *pgload.Batch) error {
	return w.write(ctx, b, &w.merges)
}

func (w *fakeWriter) write(ctx context.Context, b *pgload.Batch, into *[]string) error {
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	switch {
	case len(b.SourceID) >= 5 && b.SourceID[:5] == "panic":
		panic("writer exploded")
	case len(b.SourceID) >= 3 && b.SourceID[:3] == "bad":
		return fmt.Errorf("duplicate key: %w", pgload.ErrWrite)
	}
	w.mu.Lock()
	*into = append(*into, b.SourceID)
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) written() (appends, merges []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.appends...), append([]string(nil), w.merges...)
}

type fakeProducer struct {
	running atomic.Bool
}

func (p *fakeProducer) Running() bool { return p.running.Load() }

type recordingNotifier struct {
	pgload.NopNotifier
	mu     sync.Mutex
	loaded map[string]int
	failed map[string]error
	calls  map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		loaded: make(map[string]int),
		failed: make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (n *recordingNotifier) BatchLoaded(sourceID string, rows int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded[sourceID] = rows
	n.calls[sourceID]++
}

func (n *recordingNotifier) BatchLoadFailed(sourceID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed[sourceID] = err
	n.calls[sourceID]++
}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not finish")
	}
}

func TestDispatcher_NotifiesEachBatchExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		mode    pgload.LoadMode
		workers int
	}{
		{"bulk single worker", pgload.ModeBulk, 1},
		{"bulk many workers", pgload.ModeBulk, 8},
		{"merge many workers", pgload.ModeMerge, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.New()
			var batches []*pgload.Batch
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("file-%02d", i)
				if i%10 == 0 {
					id = fmt.Sprintf("bad-%02d", i)
				}
				b := batch(id, i%3+1)
				batches = append(batches, b)
				q.Enqueue(b)
			}

			w := &fakeWriter{}
			n := newRecordingNotifier()
			d := New(q, w, &fakeProducer{}, WithWorkers(tt.workers), WithNotifier(n), WithPollInterval(10*time.Millisecond))
			require.NoError(t, d.Start(context.Background(), tt.mode))
			waitDone(t, d)

			assert.False(t, d.Running())
			assert.Equal(t, 0, q.Len())
			for _, b := range batches {
				assert.Equal(t, 1, n.calls[b.SourceID], "notifications for %s", b.SourceID)
				assert.Nil(t, b.Records, "records of %s must be released", b.SourceID)
			}
			assert.Len(t, n.failed, 5)
			for id, err := range n.failed {
				assert.ErrorIs(t, err, pgload.ErrWrite, id)
			}

			stats := d.Stats()
			assert.Equal(t, int64(45), stats.Loaded)
			assert.Equal(t, int64(5), stats.Failed)

			appends, merges := w.written()
			if tt.mode == pgload.ModeMerge {
				assert.Empty(t, appends)
				assert.Len(t, merges, 45)
			} else {
				assert.Empty(t, merges)
				assert.Len(t, appends, 45)
			}
		})
	}
}

func TestDispatcher_ReportsRowCount(t *testing.T) {
	q := queue.New()
	q.Enqueue(batch("a", 3))
	q.Enqueue(batch("b", 0))

	n := newRecordingNotifier()
	d := New(q, &fakeWriter{}, &fakeProducer{}, WithNotifier(n))
	require.NoError(t, d.StartBulk(context.Background()))
	waitDone(t, d)

	assert.Equal(t, 3, n.loaded["a"])
	assert.Equal(t, 0, n.loaded["b"])
	assert.Equal(t, int64(3), d.Stats().Rows)
}

func TestDispatcher_WaitsForRunningProducer(t *testing.T) {
	q := queue.New()
	p := &fakeProducer{}
	p.running.Store(true)

	n := newRecordingNotifier()
	d := New(q, &fakeWriter{}, p, WithWorkers(2), WithNotifier(n), WithPollInterval(5*time.Millisecond))
	require.NoError(t, d.StartMerge(context.Background()))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, d.Running(), "workers must stay alive while the producer runs")

	q.Enqueue(batch("late", 1))
	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.calls["late"] == 1
	}, 2*time.Second, 5*time.Millisecond)

	p.running.Store(false)
	waitDone(t, d)
}

func TestDispatcher_RecoversWriterPanic(t *testing.T) {
	q := queue.New()
	q.Enqueue(batch("panic-1", 2))
	q.Enqueue(batch("ok-1", 1))

	n := newRecordingNotifier()
	d := New(q, &fakeWriter{}, &fakeProducer{}, WithWorkers(1), WithNotifier(n))
	require.NoError(t, d.StartBulk(context.Background()))
	waitDone(t, d)

	require.Contains(t, n.failed, "panic-1")
	assert.ErrorIs(t, n.failed["panic-1"], pgload.ErrWrite)
	assert.Contains(t, n.failed["panic-1"].Error(), "writer exploded")
	assert.Equal(t, 1, n.loaded["ok-1"])
}

func TestDispatcher_CancelStopsWorkers(t *testing.T) {
	q := queue.New()
	p := &fakeProducer{}
	p.running.Store(true)

	d := New(q, &fakeWriter{}, p, WithPollInterval(5*time.Millisecond))
	require.NoError(t, d.StartBulk(context.Background()))

	d.Cancel()
	d.Cancel()
	waitDone(t, d)
	assert.False(t, d.Running())
}

func TestDispatcher_ContextCancelLeavesQueuedBatches(t *testing.T) {
	q := queue.New()
	for i := 0; i < 5; i++ {
		q.Enqueue(batch(fmt.Sprintf("f%d", i), 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := newRecordingNotifier()
	w := &fakeWriter{delay: time.Second}
	d := New(q, w, &fakeProducer{}, WithWorkers(1), WithNotifier(n))
	require.NoError(t, d.StartBulk(ctx))

	time.Sleep(20 * time.Millisecond)
	cancel()
	waitDone(t, d)

	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Len(t, n.failed, 1, "the in-flight batch fails with the context")
	assert.True(t, errors.Is(n.failed["f0"], context.Canceled))
	assert.Equal(t, 4, q.Len())
}

func TestDispatcher_StartTwice(t *testing.T) {
	d := New(queue.New(), &fakeWriter{}, &fakeProducer{})
	require.NoError(t, d.StartBulk(context.Background()))
	assert.Error(t, d.StartBulk(context.Background()))
	waitDone(t, d)
}

func TestDispatcher_StartRejectsUnknownMode(t *testing.T) {
	d := New(queue.New(), &fakeWriter{}, &fakeProducer{})
	err := d.Start(context.Background(), pgload.LoadMode(42))
	assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
	assert.False(t, d.Running())
}

func TestNew_PanicsOnNilArguments(t *testing.T) {
	q := queue.New()
	w := &fakeWriter{}
	p := &fakeProducer{}

	assert.Panics(t, func() { New(nil, w, p) })
	assert.Panics(t, func() { New(q, nil, p) })
	assert.Panics(t, func() { New(q, w, nil) })
}
