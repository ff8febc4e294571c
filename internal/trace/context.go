package trace

import "context"

type ctxKey struct{}

// FromContext returns the Tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches a Tracer to context.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// SpanContext is the span and unit that new spans and events attach to.
type SpanContext struct {
	SpanID uint64
	Unit   string
}

type spanCtxKey struct{}

// CurrentSpan returns the span context of ctx, zero when absent.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	if sc, ok := ctx.Value(spanCtxKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}

// WithSpanContext attaches span context.
func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	if ctx == nil {
		return nil
	}
	return context.WithValue(ctx, spanCtxKey{}, sc)
}

// ForUnit scopes ctx to one unit: spans started from the returned context
// and every event emitted through its tracer carry the unit name.
func ForUnit(ctx context.Context, unit string) context.Context {
	t := FromContext(ctx)
	if t.Enabled() {
		ctx = WithTracer(ctx, unitTracer{Tracer: t, unit: unit})
	}
	sc := CurrentSpan(ctx)
	sc.Unit = unit
	return WithSpanContext(ctx, sc)
}

// unitTracer stamps its unit on events that do not name one.
type unitTracer struct {
	Tracer
	unit string
}

func (t unitTracer) Emit(ev *Event) {
	if ev.Unit == "" {
		ev.Unit = t.unit
	}
	t.Tracer.Emit(ev)
}
