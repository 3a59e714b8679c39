package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ysamlan/trello-to-zulip/internal/feed"
)

// Queue is a thread-safe FIFO of batches for push sources.
//
// Webhook handlers and the inbox watcher enqueue from their own goroutines;
// the Runner drains the queue from exactly one goroutine, so actions are
// interpreted and posted in arrival order.
//
// The queue is unbounded. A signal channel (buffered, size 1) lets the
// drain loop wait with context cancellation.
type Queue struct {
	mu      sync.Mutex
	batches []feed.Batch
	closed  bool
	signal  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		batches: make([]feed.Batch, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a batch to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *Queue) Enqueue(b feed.Batch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, b)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front batch without blocking.
// Returns (feed.Batch{}, false) if the queue is empty.
func (q *Queue) TryDequeue() (feed.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return feed.Batch{}, false
	}

	b := q.batches[0]

	// Clear the slot so the action payloads can be collected.
	q.batches[0] = feed.Batch{}

	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}

	return b, true
}

// Wait returns a channel that signals when batches may be available.
// The channel is closed when the queue is closed.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Close signals that no more batches will be enqueued and wakes the drain
// loop. Batches already queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Run implements feed.Source. It drains batches into fn until the queue is
// closed and empty, fn fails, or ctx is cancelled.
func (q *Queue) Run(ctx context.Context, fn func(feed.Batch) error) error {
	for {
		if b, ok := q.TryDequeue(); ok {
			if err := fn(b); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("queue stopping: context cancelled")
			q.Close()
			return ctx.Err()

		case <-q.Wait():
			// The signal channel closes with the queue, so this case also
			// fires on shutdown.
			q.mu.Lock()
			done := q.closed && len(q.batches) == 0
			q.mu.Unlock()
			if done {
				slog.Info("queue stopping: queue closed")
				return nil
			}
		}
	}
}
