package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory. Nothing is written until
// the caller dumps it, typically for the units that failed.
type RingTracer struct {
	mu      sync.RWMutex
	buf     []Event
	written uint64
	level   Level
}

// NewRingTracer creates a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.admits(ev) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.buf[t.written%uint64(len(t.buf))] = stored
	t.written++
	t.mu.Unlock()
}

// Dropped reports how many events have been overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n := uint64(len(t.buf)); t.written > n {
		return t.written - n
	}
	return 0
}

// Snapshot returns all stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Events("")
}

// Events returns the stored events of unit, oldest first. An empty unit
// selects every event.
func (t *RingTracer) Events(unit string) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := uint64(len(t.buf))
	start := uint64(0)
	if t.written > n {
		start = t.written - n
	}
	out := make([]Event, 0, t.written-start)
	for i := start; i < t.written; i++ {
		if ev := t.buf[i%n]; unit == "" || ev.Unit == unit {
			out = append(out, ev)
		}
	}
	return out
}

// Dump writes every stored event.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	return t.DumpUnit(w, format, "")
}

// DumpUnit writes the stored events of unit. Text dumps note overwritten
// events so a truncated history is not mistaken for a complete one.
func (t *RingTracer) DumpUnit(w io.Writer, format Format, unit string) error {
	if format == FormatText {
		if d := t.Dropped(); d > 0 {
			if _, err := fmt.Fprintf(w, "... %d earlier events overwritten\n", d); err != nil {
				return err
			}
		}
	}
	events := t.Events(unit)
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
