package trace

import "context"

type (
	tracerKey struct{}
	spanKey   struct{}
)

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// WithTracer returns a copy of ctx carrying t. A nil t is stored as Nop so
// FromContext never yields nil.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// SpanContext identifies the span that nested spans report as their parent.
type SpanContext struct {
	SpanID uint64
}

// CurrentSpan returns the enclosing span of ctx. Top-level work gets the
// zero SpanContext, whose SpanID means "no parent".
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx != nil {
		if sc, ok := ctx.Value(spanKey{}).(SpanContext); ok {
			return sc
		}
	}
	return SpanContext{}
}

// WithSpanContext makes sc the parent of spans begun under the returned
// context. A zero sc leaves ctx unchanged.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if sc.SpanID == 0 {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, sc)
}
