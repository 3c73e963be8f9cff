package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgload/pkg/pgload"
)

func batch(id string) *pgload.Batch {
	return &pgload.Batch{SourceID: id}
}

func TestQueue_FIFO(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.Enqueue(batch(fmt.Sprintf("f%d", i)))
	}
	require.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		b, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("f%d", i), b.SourceID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_InterleavedKeepsOrder(t *testing.T) {
	q := New()
	var got []string

	q.Enqueue(batch("a"))
	q.Enqueue(batch("b"))
	b, _ := q.TryDequeue()
	got = append(got, b.SourceID)
	q.Enqueue(batch("c"))
	for {
		b, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, b.SourceID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueue_EnqueueNilPanics(t *testing.T) {
	assert.Panics(t, func() { New().Enqueue(nil) })
}

func TestQueue_ConcurrentNoLossNoDuplicate(t *testing.T) {
	const producers, perProducer, consumers = 8, 250, 6

	q := New()
	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(batch(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}

	done := make(chan struct{})
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				b, ok := q.TryDequeue()
				if ok {
					mu.Lock()
					seen[b.SourceID]++
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					if q.Len() == 0 {
						return
					}
				default:
					q.Wait(context.Background(), time.Millisecond)
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	require.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "batch %s dequeued %d times", id, n)
	}
}

func TestQueue_WaitWokenByEnqueue(t *testing.T) {
	q := New()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(batch("x"))
	}()

	start := time.Now()
	woken := q.Wait(context.Background(), 5*time.Second)
	assert.True(t, woken)
	assert.Less(t, time.Since(start), 5*time.Second)

	b, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "x", b.SourceID)
}

func TestQueue_WaitTimeout(t *testing.T) {
	q := New()
	assert.False(t, q.Wait(context.Background(), 10*time.Millisecond))
}

func TestQueue_WaitContextCanceled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, q.Wait(ctx, time.Minute))
}

func TestQueue_WaitReturnsImmediatelyWhenNonEmpty(t *testing.T) {
	q := New()
	q.Enqueue(batch("a"))
	// Drain the signal so only the length check can satisfy Wait.
	<-q.signal
	assert.True(t, q.Wait(context.Background(), time.Minute))
}
