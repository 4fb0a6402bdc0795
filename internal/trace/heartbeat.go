package trace

import (
	"context"
	"fmt"
	"time"
)

// Heartbeat emits a heartbeat event every interval until ctx is done.
// status, when set, becomes the event detail. Heartbeats that keep reporting
// pending work with no SpanEnd in between point at a stuck background action.
func Heartbeat(ctx context.Context, t Tracer, interval time.Duration, status func() string) {
	if t == nil || !t.Enabled() || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var beats uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beats++
			detail := fmt.Sprintf("#%d", beats)
			if status != nil {
				detail += " " + status()
			}
			t.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeServer,
				GID:    getGoroutineID(),
				Name:   "heartbeat",
				Detail: detail,
			})
		}
	}
}
