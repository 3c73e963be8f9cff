package queue

import (
	"context"
	"sync"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// Queue is an unbounded FIFO of record batches.
//
// Thread-Safety: all methods are safe for concurrent use without external locking.
type Queue struct {
	mu     sync.Mutex
	items  []*pgload.Batch
	head   int
	signal chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a batch to the tail of the queue.
// Panics if batch is nil.
func (q *Queue) Enqueue(batch *pgload.Batch) {
	if batch == nil {
		panic("batch cannot be nil")
	}

	q.mu.Lock()
	q.items = append(q.items, batch)
	q.mu.Unlock()

	q.notify()
}

// TryDequeue removes and returns the oldest batch.
// Returns false if the queue is empty.
func (q *Queue) TryDequeue() (*pgload.Batch, bool) {
	q.mu.Lock()
	if q.head == len(q.items) {
		q.mu.Unlock()
		return nil, false
	}

	batch := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	remaining := len(q.items) - q.head
	if remaining == 0 {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.mu.Unlock()

	// Pass the wakeup on so another idle consumer sees the remaining items.
	if remaining > 0 {
		q.notify()
	}
	return batch, true
}

// Len returns the number of batches currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Wait blocks until a batch may be available, the timeout elapses or ctx is done.
// Returns true if woken by an enqueue. A true result is a hint, not a
// reservation: TryDequeue may still find the queue empty.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) bool {
	if q.Len() > 0 {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.signal:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
