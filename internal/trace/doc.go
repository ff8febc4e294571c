// Package trace records what the blocking pipeline does while it runs.
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead tracer used when tracing is disabled
//   - StreamTracer: immediate write to a file or stderr
//   - RingTracer: circular buffer; the CLI dumps the events of failed units
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: heartbeats only
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: per-unit events
//   - LevelDebug: every rewrite
//
// # Scopes
//
//   - ScopeDriver: CLI invocations and batch runs
//   - ScopePass: pipeline phases (layout snapshot, structural conversion, unroll, glue, strip)
//   - ScopeUnit: one unit
//   - ScopeOp: one pattern application
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx = trace.ForUnit(ctx, u.Name)
//
//	span, ctx := trace.Start(ctx, trace.ScopePass, "unroll")
//	defer span.End("")
//
// Spans started from a context inherit its current span as parent and its
// unit name. The heartbeat lists the spans still open, which names the unit
// a stuck run is working on.
package trace
