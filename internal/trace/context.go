package trace

import "context"

// tracerKey and spanKey are distinct unexported types so the two values
// propagated through context.Context (the active Tracer and the caller's
// SpanContext) can never collide even if both happened to be the same
// underlying type.
type tracerKey struct{}
type spanKey struct{}

// FromContext returns the Tracer attached to ctx by WithTracer, or Nop if
// ctx carries none. cmd/reactor calls this once per driver-loop turn rather
// than threading a *Tracer argument through every Scheduler method.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	t, ok := ctx.Value(tracerKey{}).(Tracer)
	if !ok {
		return Nop
	}
	return t
}

// WithTracer returns a child context carrying t, falling back to Nop for a
// nil Tracer so FromContext never needs a nil check of its own.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// SpanContext identifies the span a caller is nested under, so a handler
// invoked deeper in the driver loop (e.g. a task body calling back into
// scheduler helpers) can report itself as a child rather than a new root.
type SpanContext struct {
	SpanID uint64
	GID    uint64 // goroutine the parent span started on
}

// CurrentSpan returns the SpanContext attached to ctx, or a zero value
// (SpanID 0) meaning "no parent, start a root span".
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(spanKey{}).(SpanContext)
	return sc
}

// WithSpanContext attaches sc to ctx for propagation to nested Begin calls.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if ctx == nil {
		return nil
	}
	return context.WithValue(ctx, spanKey{}, sc)
}
