package trace

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Heartbeat periodically reports the spans still open. A unit whose pass
// span stays in the list across beats is stuck, typically in the rewrite
// fixpoint.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// StartHeartbeat emits a heartbeat event every interval until Stop. It
// returns nil when t is disabled or interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   t,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for beat := 1; ; beat++ {
		select {
		case <-ticker.C:
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				Name:   "heartbeat",
				Detail: beatDetail(beat, OpenSpans()),
			})
		case <-h.stopCh:
			return
		}
	}
}

func beatDetail(beat int, spans []string) string {
	if len(spans) == 0 {
		return fmt.Sprintf("#%d idle", beat)
	}
	return fmt.Sprintf("#%d open: %s", beat, strings.Join(spans, "; "))
}

// Stop ends the heartbeat goroutine and waits for it. Safe to call twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}
