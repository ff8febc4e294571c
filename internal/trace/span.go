package trace

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64

	// epoch anchors the relative timestamps of the text format.
	epoch = time.Now()

	// open tracks spans between Begin and End for the heartbeat.
	open sync.Map // span id -> *Span
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// Span is one open interval of work. A Span whose tracer is disabled is
// inert: End and WithExtra do nothing.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	unit     string
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
}

// Begin starts a span under parent (0 for a root) and emits SpanBegin.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, SpanContext{SpanID: parent})
}

// Start begins a span whose parent and unit come from ctx and returns ctx
// updated to make the new span current.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	sc := CurrentSpan(ctx)
	s := begin(FromContext(ctx), scope, name, sc)
	if s.id == 0 {
		return s, ctx
	}
	sc.SpanID = s.id
	return s, WithSpanContext(ctx, sc)
}

func begin(t Tracer, scope Scope, name string, parent SpanContext) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}
	s := &Span{
		tracer:   t,
		id:       NextSpanID(),
		parentID: parent.SpanID,
		unit:     parent.Unit,
		scope:    scope,
		name:     name,
		started:  time.Now(),
	}
	open.Store(s.id, s)
	t.Emit(&Event{
		Time:     s.started,
		Seq:      NextSeq(),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		Unit:     s.unit,
		Name:     name,
	})
	return s
}

// End emits SpanEnd and returns the span duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	open.Delete(s.id)
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		Unit:     s.unit,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return dur
}

// WithExtra adds a key-value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

func (s *Span) label() string {
	age := time.Since(s.started).Round(time.Millisecond)
	if s.unit != "" {
		return fmt.Sprintf("%s/%s[%s] %s", s.scope, s.name, s.unit, age)
	}
	return fmt.Sprintf("%s/%s %s", s.scope, s.name, age)
}

// OpenSpans describes every span begun and not yet ended, oldest first.
func OpenSpans() []string {
	var spans []*Span
	open.Range(func(_, v any) bool {
		spans = append(spans, v.(*Span))
		return true
	})
	sort.Slice(spans, func(i, j int) bool { return spans[i].id < spans[j].id })
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.label()
	}
	return out
}
