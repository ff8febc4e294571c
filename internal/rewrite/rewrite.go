// Package rewrite drives pattern rewrites over a unit until nothing applies.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"xeblock/internal/ir"
	"xeblock/internal/trace"
)

// ErrNoConvergence is returned when the rewrite budget or the iteration budget
// is exhausted before a fixpoint is reached.
var ErrNoConvergence = errors.New("rewrite: no fixpoint reached")

// Pattern rewrites one operation. Apply must leave the unit untouched when it
// returns false.
type Pattern struct {
	Name string
	// Kinds restricts the pattern to these op kinds; empty matches every kind.
	Kinds []ir.Kind
	Apply func(rw *Rewriter, op ir.OpID) bool
}

func (p *Pattern) matches(k ir.Kind) bool {
	return len(p.Kinds) == 0 || slices.Contains(p.Kinds, k)
}

// Config bounds the driver.
type Config struct {
	// MaxRewrites caps successful pattern applications; 0 means unlimited.
	MaxRewrites int
	// MaxIterations caps full sweeps over the unit; 0 means 10.
	MaxIterations int
}

// Stats summarises one ApplyGreedily run.
type Stats struct {
	Rewrites   map[string]int
	Folds      int
	Erased     int
	Iterations int
}

// Total returns the number of successful pattern applications.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Rewrites {
		n += c
	}
	return n
}

// Rewriter is the mutation surface handed to patterns. Going through it keeps
// the worklist aware of operations whose operands may have become dead.
type Rewriter struct {
	d *driver
}

// Unit returns the unit being rewritten.
func (rw *Rewriter) Unit() *ir.Unit { return rw.d.u }

// Before returns a builder positioned right before op.
func (rw *Rewriter) Before(op ir.OpID) *ir.Builder { return rw.d.u.Before(op) }

// ReplaceOp rewires the results of op to values and erases op.
func (rw *Rewriter) ReplaceOp(op ir.OpID, values []ir.ValueID) {
	rw.d.pushProducers(op)
	rw.d.u.ReplaceOp(op, values)
}

// EraseOp erases an op whose results are unused.
func (rw *Rewriter) EraseOp(op ir.OpID) {
	rw.d.pushProducers(op)
	rw.d.u.EraseOp(op)
}

// Debugf emits a node-level trace point.
func (rw *Rewriter) Debugf(format string, args ...any) {
	trace.Pointf(rw.d.tracer, trace.ScopeOp, "rewrite", format, args...)
}

type driver struct {
	u        *ir.Unit
	patterns []Pattern
	tracer   trace.Tracer

	queue   []ir.OpID
	head    int
	queued  map[ir.OpID]bool
	changed bool
}

// ApplyGreedily applies patterns until no pattern, fold or dead-op erasure
// changes the unit. Ops are visited from an explicit queue in insertion order;
// anything created or modified is queued again.
func ApplyGreedily(ctx context.Context, u *ir.Unit, patterns []Pattern, cfg Config) (Stats, error) {
	d := &driver{
		u:        u,
		patterns: patterns,
		tracer:   trace.FromContext(ctx),
		queued:   make(map[ir.OpID]bool),
	}
	stats := Stats{Rewrites: make(map[string]int)}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	prev := u.SetListener(d)
	defer u.SetListener(prev)

	rw := &Rewriter{d: d}
	total := 0
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Iterations++
		d.changed = false
		for _, op := range u.Ops() {
			d.push(op)
		}
		for {
			op, ok := d.pop()
			if !ok {
				break
			}
			name, applied := d.process(rw, op, &stats)
			if !applied {
				continue
			}
			stats.Rewrites[name]++
			total++
			if cfg.MaxRewrites > 0 && total > cfg.MaxRewrites {
				return stats, fmt.Errorf("%w: more than %d rewrites", ErrNoConvergence, cfg.MaxRewrites)
			}
		}
		if !d.changed {
			return stats, nil
		}
	}
	return stats, fmt.Errorf("%w: still changing after %d sweeps", ErrNoConvergence, maxIter)
}

// process handles one op. It reports the pattern name when a pattern fired.
func (d *driver) process(rw *Rewriter, op ir.OpID, stats *Stats) (string, bool) {
	o := d.u.Op(op)
	if o.Erased {
		return "", false
	}
	if d.triviallyDead(op) {
		d.pushProducers(op)
		d.u.EraseOp(op)
		stats.Erased++
		return "", false
	}
	if o.Kind == ir.KindGlue && d.foldGlue(rw, op) {
		stats.Folds++
		return "", false
	}
	kind := o.Kind
	for i := range d.patterns {
		p := &d.patterns[i]
		if !p.matches(kind) {
			continue
		}
		if p.Apply(rw, op) {
			if d.tracer.Level().ShouldEmit(trace.ScopeOp) {
				trace.Pointf(d.tracer, trace.ScopeOp, p.Name, "op %d (%s)", op, kind)
			}
			return p.Name, true
		}
	}
	return "", false
}

func (d *driver) triviallyDead(op ir.OpID) bool {
	o := d.u.Op(op)
	if !o.Kind.Has(ir.TraitPure) || o.Kind.Has(ir.TraitTerminator) || len(o.Regions) > 0 {
		return false
	}
	if len(o.Results) == 0 {
		return false
	}
	for _, r := range o.Results {
		if d.u.HasUses(r) {
			return false
		}
	}
	return true
}

// foldGlue folds identity adapters and adapter round trips:
// glue(glue(x)) becomes x when the inner adapter's results are exactly the
// outer adapter's inputs and the inner inputs have the outer result types.
func (d *driver) foldGlue(rw *Rewriter, op ir.OpID) bool {
	u := d.u
	o := u.Op(op)
	if len(o.Operands) == len(o.Results) && slices.Equal(u.OperandTypes(op), u.ResultTypes(op)) {
		rw.ReplaceOp(op, slices.Clone(o.Operands))
		return true
	}
	if len(o.Operands) == 0 {
		return false
	}
	def := u.Value(o.Operands[0]).Def
	if def == ir.NoOpID || u.Op(def).Kind != ir.KindGlue {
		return false
	}
	inner := u.Op(def)
	if !slices.Equal(inner.Results, o.Operands) {
		return false
	}
	if !slices.Equal(u.OperandTypes(def), u.ResultTypes(op)) {
		return false
	}
	rw.ReplaceOp(op, slices.Clone(inner.Operands))
	return true
}

func (d *driver) pushProducers(op ir.OpID) {
	for _, v := range d.u.Op(op).Operands {
		if def := d.u.Value(v).Def; def != ir.NoOpID {
			d.push(def)
		}
	}
}

func (d *driver) push(op ir.OpID) {
	if d.queued[op] || d.u.Op(op).Erased {
		return
	}
	d.queued[op] = true
	d.queue = append(d.queue, op)
}

func (d *driver) pop() (ir.OpID, bool) {
	for d.head < len(d.queue) {
		op := d.queue[d.head]
		d.head++
		delete(d.queued, op)
		if !d.u.Op(op).Erased {
			return op, true
		}
	}
	d.queue = d.queue[:0]
	d.head = 0
	return ir.NoOpID, false
}

func (d *driver) OpCreated(op ir.OpID) {
	d.changed = true
	d.push(op)
}

func (d *driver) OpModified(op ir.OpID) {
	d.changed = true
	d.push(op)
}

func (d *driver) OpErased(ir.OpID) {
	d.changed = true
}

// String renders the per-pattern counts in a stable order.
func (s Stats) String() string {
	names := make([]string, 0, len(s.Rewrites))
	for n := range s.Rewrites {
		names = append(names, n)
	}
	slices.Sort(names)
	out := "rewrites=" + strconv.Itoa(s.Total())
	for _, n := range names {
		out += " " + n + "=" + strconv.Itoa(s.Rewrites[n])
	}
	out += " folds=" + strconv.Itoa(s.Folds) + " erased=" + strconv.Itoa(s.Erased)
	return out
}
