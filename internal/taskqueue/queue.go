// Package taskqueue provides the unbounded FIFO of deferred actions drained by a
// single background consumer.
package taskqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue has been closed and drained.
var ErrClosed = errors.New("taskqueue: closed")

// Queue is a thread-safe unbounded FIFO with a blocking dequeue.
// Any number of producers may call Enqueue; Dequeue is meant for one consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	signal chan struct{}
	closed bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Enqueue appends an item and wakes the consumer. Items enqueued after Close are dropped.
func (q *Queue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.notify()
	return true
}

// Dequeue blocks until an item is available or ctx is done, then removes and
// returns the oldest item.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			item := q.items[q.head]
			q.items[q.head] = zero
			q.head++
			if q.head == len(q.items) {
				q.items = q.items[:0]
				q.head = 0
			}
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, ErrClosed
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops accepting new items. Items already queued are still returned by Dequeue.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *Queue[T]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
