package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeOp, false},
		{LevelDebug, ScopeOp, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatText)
	span := Begin(tr, ScopePass, "unroll", 0)
	Pointf(tr, ScopeOp, "load_nd", "tiles=%d", 4)
	span.WithExtra("b", "2").WithExtra("a", "1").End("done")

	out := buf.String()
	for _, want := range []string{"→ unroll", "• load_nd (tiles=4)", "← unroll (done) {a=1, b=2}"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPointRespectsLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelPhase)
	Point(ring, ScopeOp, "dpas", "")
	Point(ring, ScopePass, "strip", "")
	events := ring.Snapshot()
	if len(events) != 1 || events[0].Name != "strip" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRingWrapsAndDumps(t *testing.T) {
	ring := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(ring, ScopePass, name, "")
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"name":"b"`) || !strings.Contains(lines[1], `"name":"c"`) {
		t.Fatalf("unexpected dump:\n%s", buf.String())
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatalf("background context must carry the nop tracer")
	}
	ring := NewRingTracer(1, LevelPhase)
	if FromContext(WithTracer(context.Background(), ring)) != Tracer(ring) {
		t.Fatalf("tracer not propagated")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("ndjson"); err != nil || f != FormatNDJSON {
		t.Fatalf("ParseFormat(ndjson) = %v, %v", f, err)
	}
	if _, err := ParseFormat("chrome"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestForUnitStampsEventsAndSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := ForUnit(WithTracer(context.Background(), ring), "gemm")

	span, inner := Start(ctx, ScopeUnit, "blocking")
	if got := CurrentSpan(inner); got.SpanID != span.ID() || got.Unit != "gemm" {
		t.Fatalf("span context = %+v", got)
	}
	child, _ := Start(inner, ScopePass, "unroll")
	Point(FromContext(inner), ScopeOp, "unroll-dpas", "")

	open := strings.Join(OpenSpans(), "\n")
	if !strings.Contains(open, "unit/blocking[gemm]") || !strings.Contains(open, "pass/unroll[gemm]") {
		t.Fatalf("open spans missing the unit spans:\n%s", open)
	}
	child.End("")
	span.End("")
	if open := strings.Join(OpenSpans(), "\n"); strings.Contains(open, "[gemm]") {
		t.Fatalf("ended spans still open:\n%s", open)
	}

	events := ring.Snapshot()
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	for _, ev := range events {
		if ev.Unit != "gemm" {
			t.Fatalf("event %s %s has unit %q", ev.Kind, ev.Name, ev.Unit)
		}
	}
	if events[1].ParentID != events[0].SpanID {
		t.Fatalf("pass span parent = %d, want %d", events[1].ParentID, events[0].SpanID)
	}
}

func TestStartWithoutTracerIsInert(t *testing.T) {
	ctx := context.Background()
	span, got := Start(ctx, ScopePass, "unroll")
	if span.ID() != 0 || got != ctx {
		t.Fatalf("disabled tracing must not allocate spans")
	}
	if span.End("") != 0 {
		t.Fatalf("inert span reported a duration")
	}
}

func TestHeartbeatDetail(t *testing.T) {
	if got := beatDetail(3, nil); got != "#3 idle" {
		t.Fatalf("beatDetail = %q", got)
	}
	if got := beatDetail(1, []string{"a", "b"}); got != "#1 open: a; b" {
		t.Fatalf("beatDetail = %q", got)
	}
	var h *Heartbeat
	h.Stop()
	if StartHeartbeat(Nop, 0) != nil {
		t.Fatalf("nop tracer must not start a heartbeat")
	}
}

func TestRingDumpsOneUnit(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	base := WithTracer(context.Background(), ring)
	for _, unit := range []string{"gemm", "add", "gemm"} {
		Point(FromContext(ForUnit(base, unit)), ScopeUnit, "blocking", unit)
	}
	if got := len(ring.Events("gemm")); got != 2 {
		t.Fatalf("gemm has %d events, want 2", got)
	}
	var buf bytes.Buffer
	if err := ring.DumpUnit(&buf, FormatText, "add"); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); strings.Count(out, "\n") != 1 || !strings.Contains(out, "[add]") {
		t.Fatalf("unexpected dump:\n%s", out)
	}
}

func TestRingNotesOverwrittenEvents(t *testing.T) {
	ring := NewRingTracer(1, LevelDebug)
	Point(ring, ScopePass, "a", "")
	Point(ring, ScopePass, "b", "")
	if d := ring.Dropped(); d != 1 {
		t.Fatalf("Dropped = %d, want 1", d)
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "... 1 earlier events overwritten\n") {
		t.Fatalf("missing overwrite note:\n%s", buf.String())
	}
}

func TestNewPicksSinks(t *testing.T) {
	var buf bytes.Buffer
	both, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf, RingSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	ring, ok := Ring(FromContext(ForUnit(WithTracer(context.Background(), both), "gemm")))
	if !ok {
		t.Fatalf("ModeBoth tracer has no ring")
	}
	Point(both, ScopePass, "unroll", "")
	if len(ring.Snapshot()) != 1 || !strings.Contains(buf.String(), "unroll") {
		t.Fatalf("event did not reach both sinks: ring=%d stream=%q", len(ring.Snapshot()), buf.String())
	}

	stream, err := New(Config{Level: LevelPhase, Mode: ModeStream, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := Ring(stream); ok {
		t.Fatalf("stream mode must not buffer")
	}
	if off, _ := New(Config{Level: LevelOff, Mode: ModeRing}); off.Enabled() {
		t.Fatalf("LevelOff must build the nop tracer")
	}
	if _, err := New(Config{Level: LevelPhase}); err == nil {
		t.Fatalf("missing mode accepted")
	}
}

func TestParseIgnoresCase(t *testing.T) {
	if l, err := ParseLevel("Detail"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel(Detail) = %v, %v", l, err)
	}
	if m, err := ParseMode("RING"); err != nil || m != ModeRing {
		t.Fatalf("ParseMode(RING) = %v, %v", m, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("unknown level accepted")
	}
}
