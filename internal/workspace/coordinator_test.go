package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := NewCoordinator()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func TestWaitReturnsImmediatelyWhenIdle(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("idle wait should succeed even with a cancelled context: %v", err)
	}
}

func TestWaitReleasedWhenLastActionFinishes(t *testing.T) {
	c := startCoordinator(t)
	release := make(chan struct{})
	c.RunInBackground("hold", func(context.Context) error {
		<-release
		return nil
	})
	c.RunInBackground("second", func(context.Context) error { return nil })
	if got := c.Pending(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}

	waited := make(chan error, 1)
	go func() {
		waited <- c.Wait(context.Background())
	}()
	select {
	case err := <-waited:
		t.Fatalf("wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wait not released")
	}
	if got := c.Pending(); got != 0 {
		t.Fatalf("expected 0 pending, got %d", got)
	}
}

func TestWaitCancelled(t *testing.T) {
	c := startCoordinator(t)
	release := make(chan struct{})
	defer close(release)
	c.RunInBackground("hold", func(context.Context) error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	c.mu.Lock()
	n := len(c.waiters)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("cancelled waiter left registered (%d)", n)
	}
}

func TestPendingCountsEveryAction(t *testing.T) {
	c := startCoordinator(t)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		min int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RunInBackground("work", func(context.Context) error {
				mu.Lock()
				if p := c.Pending(); p < min {
					min = p
				}
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if min < 0 {
		t.Fatalf("pending went negative: %d", min)
	}
	if got := c.Pending(); got != 0 {
		t.Fatalf("expected 0 pending, got %d", got)
	}
}

func TestFailingActionsStillFinish(t *testing.T) {
	c := startCoordinator(t)
	c.RunInBackground("fails", func(context.Context) error { return errors.New("boom") })
	c.RunInBackground("panics", func(context.Context) error { panic("boom") })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRunInBackgroundAfterClose(t *testing.T) {
	c := NewCoordinator()
	c.Close()
	if c.RunInBackground("late", func(context.Context) error { return nil }) {
		t.Fatal("expected enqueue after close to fail")
	}
	if got := c.Pending(); got != 0 {
		t.Fatalf("expected 0 pending, got %d", got)
	}
}
