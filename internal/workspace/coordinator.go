package workspace

import (
	"context"
	"sync"
	"sync/atomic"

	"stepls/internal/taskqueue"
)

// Coordinator owns the background queue, the count of pending actions and
// the callers waiting for that count to reach zero.
//
// pending is incremented before an action is queued and decremented after it
// ran, whatever the outcome. Waiters registered while pending > 0 are released
// together the next time it returns to zero.
type Coordinator struct {
	queue   *taskqueue.Queue[taskqueue.Action]
	pending atomic.Int64

	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCoordinator creates a coordinator with an empty queue.
func NewCoordinator() *Coordinator {
	return &Coordinator{queue: taskqueue.New[taskqueue.Action]()}
}

// RunInBackground queues fn for the consumer. It reports false when the
// queue has been closed, in which case fn never runs.
func (c *Coordinator) RunInBackground(name string, fn func(ctx context.Context) error) bool {
	c.pending.Add(1)
	ok := c.queue.Enqueue(taskqueue.Action{
		Name: name,
		Run: func(ctx context.Context) error {
			defer c.finish()
			return fn(ctx)
		},
	})
	if !ok {
		c.finish()
	}
	return ok
}

func (c *Coordinator) finish() {
	if c.pending.Add(-1) != 0 {
		return
	}
	c.mu.Lock()
	// Work scheduled after the decrement keeps the waiters for its own finish.
	if c.pending.Load() != 0 {
		c.mu.Unlock()
		return
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// Pending returns the number of queued or running actions.
func (c *Coordinator) Pending() int64 {
	return c.pending.Load()
}

// Wait blocks until no action is pending or ctx is done. It returns
// immediately when nothing is pending.
func (c *Coordinator) Wait(ctx context.Context) error {
	if c.pending.Load() == 0 {
		return nil
	}
	c.mu.Lock()
	if c.pending.Load() == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		c.dropWaiter(ch)
		return ctx.Err()
	}
}

func (c *Coordinator) dropWaiter(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Run drains the queue on the calling goroutine until ctx is done or the
// coordinator is closed.
func (c *Coordinator) Run(ctx context.Context, onError taskqueue.ErrorFunc) error {
	return taskqueue.NewConsumer(c.queue, onError).Run(ctx)
}

// Close stops accepting work. Already queued actions still run.
func (c *Coordinator) Close() {
	c.queue.Close()
}
