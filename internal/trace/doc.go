// Package trace records what the stepls server does in the background:
// queued actions, project reloads, compile and link passes. Traces are the
// first thing to look at when builds are slow or diagnostics stop arriving.
//
// Tracing is off by default and enabled per run:
//
//	stepls serve --trace=stepls.trace.ndjson --trace-level=detail
//
// Events go to a StreamTracer (written as they happen), a RingTracer (kept in
// memory and dumped when the process exits) or both through a MultiTracer.
// Nop is used when tracing is off.
//
// Levels are cumulative. LevelPhase covers the server lifecycle and rebuilds,
// LevelDetail adds every queued action and LevelDebug adds per-file events.
//
// The active tracer and span travel in a context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeBuild, "compile", 0)
//	defer span.End("")
package trace
