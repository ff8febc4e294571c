// Package blocking lowers subgroup-level vector and descriptor operations
// into a grid of instruction-sized tiles.
//
// Run drives the pipeline over one unit:
//
//  1. snapshot the layout of every operand and result into the op's side table;
//  2. push the tiling through loops and conditionals (xegpu.ConvertSCFStructuralTypes);
//  3. unroll every op NeedsUnroll selects to the tile TileShapeOf returns,
//     until nothing changes;
//  4. turn surviving adapters into assemble/decompose ops (ResolveGlue);
//  5. strip the side table (StripSideTable).
//
// Broken structural assumptions panic with *ir.InvariantError inside the
// pipeline; Run recovers them and returns them as errors. The unit must be
// discarded in that case.
package blocking

import (
	"context"
	"errors"
	"fmt"

	"xeblock/internal/diag"
	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/observ"
	"xeblock/internal/rewrite"
	"xeblock/internal/trace"
	"xeblock/internal/unroll"
	"xeblock/internal/xegpu"
)

// DefaultMaxRewrites bounds the fixpoint when Options leaves it unset.
const DefaultMaxRewrites = 100000

// Options configures Run.
type Options struct {
	// MaxRewrites caps pattern applications; 0 selects DefaultMaxRewrites.
	MaxRewrites int
	// Verify checks the structural invariants of the unit afterwards.
	Verify bool
	// MaxDiagnostics bounds Report.Diags; 0 selects 256.
	MaxDiagnostics int
}

// DefaultOptions returns the options the CLI starts from.
func DefaultOptions() Options {
	return Options{MaxRewrites: DefaultMaxRewrites, Verify: true}
}

// Report describes one Run.
type Report struct {
	Unit       string
	SideTable  int
	Structural xegpu.StructuralStats
	Rewrite    rewrite.Stats
	Glue       GlueStats
	// Remaining counts ops with a tile that NeedsUnroll still selects
	// after the fixpoint.
	Remaining  int
	Stripped   int
	Reattached int
	Diags      []diag.Diagnostic
	Timings    observ.Report
}

// Changed reports whether the run unrolled, folded or resolved anything.
// The side table is always added and removed again, and loops carrying
// vectors are always canonicalized and converted back, so neither counts.
func (r *Report) Changed() bool {
	return r.Rewrite.Total()+r.Rewrite.Folds+r.Rewrite.Erased > 0 ||
		r.Glue.Assembled+r.Glue.Decomposed+r.Glue.Forwarded+r.Glue.Erased > 0 ||
		r.Reattached > 0
}

// Run blocks u in place.
func Run(ctx context.Context, u *ir.Unit, opts Options) (rep Report, err error) {
	if opts.MaxRewrites <= 0 {
		opts.MaxRewrites = DefaultMaxRewrites
	}
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 256
	}
	rep.Unit = u.Name
	bag := diag.NewBag(opts.MaxDiagnostics)
	reporter := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	timer := observ.NewTimer()
	span, ctx := trace.Start(trace.ForUnit(ctx, u.Name), trace.ScopeUnit, "blocking")
	tracer := trace.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*ir.InvariantError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("blocking %s: %w", u.Name, ie)
		}
		bag.Sort()
		rep.Diags = bag.Items()
		rep.Timings = timer.Report()
		detail := "done"
		if err != nil {
			detail = "error"
		}
		span.End(detail)
	}()

	idx := timer.Begin("side-table")
	rep.SideTable = xegpu.SetLayoutAttrs(u, func(v ir.ValueID) *layout.Layout { return xegpu.LayoutOf(u, v) })
	reportLayoutFindings(u, reporter)
	timer.End(idx, fmt.Sprintf("%d entries", rep.SideTable))

	idx = timer.Begin("structural")
	rep.Structural, err = xegpu.ConvertSCFStructuralTypes(ctx, u, TilingConverter())
	timer.End(idx, rep.Structural.String())
	if err != nil {
		return rep, fmt.Errorf("blocking %s: %w", u.Name, err)
	}

	idx = timer.Begin("unroll")
	pspan, pctx := trace.Start(ctx, trace.ScopePass, "unroll")
	rep.Rewrite, err = rewrite.ApplyGreedily(pctx, u, unroll.Patterns(unroll.Options{
		Filter:        NeedsUnroll,
		NativeShape:   TileShapeOf,
		UnrolledTypes: UnrolledTypes,
	}), rewrite.Config{MaxRewrites: opts.MaxRewrites})
	pspan.End(rep.Rewrite.String())
	timer.End(idx, fmt.Sprintf("%d rewrites", rep.Rewrite.Total()))
	if err != nil {
		return rep, fmt.Errorf("blocking %s: %w", u.Name, err)
	}
	for _, op := range u.Ops() {
		if !NeedsUnroll(u, op) {
			continue
		}
		kind := u.Op(op).Kind
		switch {
		case TileShapeOf(u, op) != nil:
			rep.Remaining++
			diag.ReportWarning(reporter, diag.PipeNeedsUnrolling, locOf(u, op),
				"operation still needs unrolling after the fixpoint").Emit()
		case kind != ir.KindDpas && familyOf(kind) != familyNone:
			trace.Point(tracer, trace.ScopeOp, "no-tile-shape", kind.String())
			diag.ReportInfo(reporter, diag.BlkNoTileShape, locOf(u, op),
				"operands are tiled but the op has no tile shape").Emit()
		}
	}

	idx = timer.Begin("glue")
	pspan, _ = trace.Start(ctx, trace.ScopePass, "resolve-glue")
	rep.Glue = ResolveGlue(u)
	for _, s := range rep.Glue.Skipped {
		trace.Point(tracer, trace.ScopeOp, "glue-skipped", s.Detail)
		diag.ReportInfo(reporter, s.Reason, locOf(u, s.Op), s.Detail).Emit()
	}
	pspan.End(fmt.Sprintf("assembled=%d decomposed=%d skipped=%d",
		rep.Glue.Assembled, rep.Glue.Decomposed, len(rep.Glue.Skipped)))
	timer.End(idx, "")

	idx = timer.Begin("strip")
	rep.Stripped, rep.Reattached = StripSideTable(u)
	timer.End(idx, fmt.Sprintf("%d reattached", rep.Reattached))

	if opts.Verify {
		idx = timer.Begin("verify")
		verr := ir.Verify(u)
		timer.End(idx, "")
		if verr != nil {
			return rep, fmt.Errorf("blocking %s: %w", u.Name, errors.Join(ErrVerify, verr))
		}
	}
	return rep, nil
}

// ErrVerify marks verification failures after the pass.
var ErrVerify = errors.New("verify failed")

// reportLayoutFindings records what the pass will leave alone on purpose:
// ops still laid out for a workgroup and contractions whose tiles disagree.
func reportLayoutFindings(u *ir.Unit, r diag.Reporter) {
	for _, op := range u.Ops() {
		kind := u.Op(op).Kind
		if kind.Has(ir.TraitLoopLike) {
			continue
		}
		if hasWorkgroupLayout(u, op) {
			diag.ReportInfo(r, diag.BlkWorkgroupLayout, locOf(u, op),
				"workgroup layout must be distributed to subgroups first").Emit()
			continue
		}
		if kind == ir.KindDpas {
			if _, reason := contractionTiles(u, op); reason != "" {
				diag.ReportWarning(r, diag.BlkContractionMismatch, locOf(u, op), reason).Emit()
			}
		}
	}
}

func hasWorkgroupLayout(u *ir.Unit, op ir.OpID) bool {
	o := u.Op(op)
	for i := range o.Operands {
		if xegpu.OperandLayout(u, op, i).IsWgLayout() {
			return true
		}
	}
	for i := range o.Results {
		if xegpu.ResultLayout(u, op, i).IsWgLayout() {
			return true
		}
	}
	return false
}

func locOf(u *ir.Unit, op ir.OpID) diag.Loc {
	return diag.Loc{Unit: u.Name, Op: int32(op), Kind: u.Op(op).Kind.String()}
}
