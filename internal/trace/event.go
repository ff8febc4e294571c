package trace

import "time"

// Kind is what an event marks.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat // periodic liveness signal listing open spans
)

var kindNames = [...]string{"", "begin", "end", "point", "heartbeat"}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event; lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers whole runs of the CLI or of RunUnits.
	ScopeDriver Scope = iota + 1
	// ScopePass covers one phase of the blocking pipeline.
	ScopePass
	// ScopeUnit covers the processing of a single unit.
	ScopeUnit
	// ScopeOp marks individual rewrites.
	ScopeOp
)

var scopeNames = [...]string{"", "driver", "pass", "unit", "op"}

func (s Scope) String() string {
	if s > 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is one trace record.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	Unit     string            // unit the event belongs to, empty for driver events
	Name     string            // e.g. "unroll", "resolve-glue", "unroll-dpas"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
