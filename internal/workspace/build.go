package workspace

import (
	"context"
	"fmt"
	"time"

	"stepls/internal/diagnostics"
	"stepls/internal/fileuri"
	"stepls/internal/observ"
	"stepls/internal/project"
	"stepls/internal/trace"
)

var timeZero time.Time

// rebuild compiles and links the current project, stores the snapshot and
// publishes diagnostics for the open files.
//
// The rebuild is skipped while newer work is queued behind it; that work
// schedules its own rebuild. Once skips have gone on for maxDelay the
// rebuild runs regardless.
func (h *Host) rebuild(ctx context.Context) error {
	pc := h.current.Load()
	if pc == nil || h.compiler == nil {
		return nil
	}
	if h.coord.Pending() > 1 && !h.overdue() {
		h.deferred = true
		trace.Point(trace.FromContext(ctx), trace.ScopeBuild, "rebuild skipped", fmt.Sprintf("pending=%d", h.coord.Pending()))
		return nil
	}
	h.deferred = false
	h.skipSince = timeZero

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeBuild, "rebuild", trace.CurrentSpan(ctx).SpanID)
	timer := observ.NewTimer()

	phase := timer.Begin("compile")
	compileSpan := trace.Begin(tracer, trace.ScopeBuild, "compile", span.ID())
	comp, err := h.compiler.Compile(ctx, pc.project)
	compileSpan.End("")
	if err != nil || ctx.Err() != nil {
		return h.abandon(ctx, span, "compile", err)
	}
	timer.End(phase, fmt.Sprintf("%d files", len(comp.Results)))

	phase = timer.Begin("link")
	linkSpan := trace.Begin(tracer, trace.ScopeBuild, "link", span.ID())
	snap, err := h.compiler.Link(ctx, comp)
	linkSpan.End("")
	if err != nil || ctx.Err() != nil {
		return h.abandon(ctx, span, "link", err)
	}
	timer.End(phase, "")

	h.snapshot.Store(snap)
	span.WithExtra("snapshot", snap.ID.String())
	span.End(timer.Summary())
	h.log.Debugf("build %s: %s", snap.ID, timer.Summary())

	h.publish(ctx, pc, snap)
	return nil
}

// abandon ends a rebuild that did not produce a snapshot. Cancellation is
// silent; compiler failures are returned to the consumer to be logged.
func (h *Host) abandon(ctx context.Context, span *trace.Span, phase string, err error) error {
	if ctx.Err() != nil {
		span.End("cancelled")
		return nil
	}
	span.End("error")
	return fmt.Errorf("%s: %w", phase, err)
}

// overdue records the first skip of a burst and reports whether skipping has
// gone on for at least maxDelay.
func (h *Host) overdue() bool {
	if h.maxDelay <= 0 {
		return false
	}
	now := time.Now()
	if h.skipSince.IsZero() {
		h.skipSince = now
		return false
	}
	return now.Sub(h.skipSince) >= h.maxDelay
}

func (h *Host) publish(ctx context.Context, pc *projectContext, snap *project.Snapshot) {
	if h.notifier == nil {
		return
	}
	for _, rel := range h.overlay.Paths() {
		res, ok := snap.File(rel)
		if !ok {
			continue
		}
		f, ok := pc.project.File(rel)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := h.notifier.PublishDiagnostics(fileuri.FromPath(f.Absolute), diagnostics.ForResult(res)); err != nil {
			h.log.Errorf("publish diagnostics for %s: %v", rel, err)
		}
	}
	if err := h.notifier.BuildComplete(); err != nil {
		h.log.Errorf("build complete notification: %v", err)
	}
}
