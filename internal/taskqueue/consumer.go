package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"stepls/internal/trace"
)

// Action is a unit of background work. The context is the consumer's lifetime.
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

// PanicError wraps a value recovered from a panicking action.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorFunc receives failures of individual actions.
type ErrorFunc func(action string, err error)

// Consumer drains a queue of actions sequentially.
type Consumer struct {
	queue   *Queue[Action]
	onError ErrorFunc
}

// NewConsumer creates a consumer for q. onError may be nil.
func NewConsumer(q *Queue[Action], onError ErrorFunc) *Consumer {
	return &Consumer{queue: q, onError: onError}
}

// Run executes queued actions one at a time until ctx is cancelled or the queue
// is closed and empty. A failing or panicking action never stops the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		action, err := c.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.execute(ctx, action); err != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopeQueue, "action failed", action.Name+": "+err.Error())
			if c.onError != nil {
				c.onError(action.Name, err)
			}
		}
	}
}

func (c *Consumer) execute(ctx context.Context, action Action) (err error) {
	if action.Run == nil {
		return nil
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeQueue, "action:"+action.Name, trace.CurrentSpan(ctx).SpanID)
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		detail := "ok"
		if err != nil {
			detail = "error"
		}
		span.End(detail)
	}()
	return action.Run(trace.WithSpanContext(ctx, trace.SpanContext{SpanID: span.ID()}))
}
