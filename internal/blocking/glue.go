package blocking

import (
	"slices"

	"xeblock/internal/diag"
	"xeblock/internal/ir"
	"xeblock/internal/shape"
	"xeblock/internal/unroll"
	"xeblock/internal/xegpu"
)

// GlueStats counts what ResolveGlue did with the adapters it found.
type GlueStats struct {
	Assembled  int
	Decomposed int
	Forwarded  int
	Erased     int
	Skipped    []SkippedGlue
}

// SkippedGlue is an adapter ResolveGlue left in place.
type SkippedGlue struct {
	Op     ir.OpID
	Reason diag.Code
	Detail string
}

// ResolveGlue replaces the adapters surviving the rewrite fixpoint by
// canonical ops. A many-to-one adapter over uniformly typed tiles becomes an
// assemble, a one-to-many adapter a decompose. Degenerate adapters with no
// inputs or no results are erased once nothing reads them. Anything else
// is not a pack or unpack and is left for a later stage.
func ResolveGlue(u *ir.Unit) GlueStats {
	var st GlueStats
	for _, op := range u.OpsOfKind(ir.KindGlue) {
		o := u.Op(op)
		inputs, results := slices.Clone(o.Operands), slices.Clone(o.Results)
		switch {
		case len(inputs) == 0 || len(results) == 0:
			if slices.ContainsFunc(results, u.HasUses) {
				st.Skipped = append(st.Skipped, SkippedGlue{Op: op, Reason: diag.BlkGlueStillUsed,
					Detail: "adapter without inputs still has uses"})
				continue
			}
			u.EraseOp(op)
			st.Erased++
		case !uniform(u, inputs) || !uniform(u, results):
			st.Skipped = append(st.Skipped, SkippedGlue{Op: op, Reason: diag.BlkGlueNotPackUnpack,
				Detail: "operand or result types are not uniform"})
		case len(inputs) == 1 && len(results) == 1:
			if u.Value(inputs[0]).Type != u.Value(results[0]).Type {
				st.Skipped = append(st.Skipped, SkippedGlue{Op: op, Reason: diag.BlkGlueNotPackUnpack,
					Detail: u.TypeOf(inputs[0]).String() + " to " + u.TypeOf(results[0]).String()})
				continue
			}
			u.ReplaceOp(op, inputs)
			st.Forwarded++
		case len(inputs) > 1 && len(results) == 1:
			b := u.Before(op)
			whole := xegpu.Assemble(b, inputs, u.Value(results[0]).Type, tileShape(u, op, inputs[0]))
			u.ReplaceOp(op, []ir.ValueID{whole})
			st.Assembled++
		case len(inputs) == 1 && len(results) > 1:
			b := u.Before(op)
			tiles := xegpu.Decompose(b, inputs[0], typesOf(u, results), tileShape(u, op, results[0]))
			u.ReplaceOp(op, tiles)
			st.Decomposed++
		default:
			st.Skipped = append(st.Skipped, SkippedGlue{Op: op, Reason: diag.BlkGlueNotPackUnpack,
				Detail: "many-to-many adapter"})
		}
	}
	return st
}

// tileShape prefers the shape recorded by the unroll patterns and falls back
// to the shape of one tile.
func tileShape(u *ir.Unit, op ir.OpID, tile ir.ValueID) []int64 {
	if s, ok := u.Op(op).Attrs.Ints(unroll.AttrTileShape); ok {
		return shape.Clone(s)
	}
	return shape.Clone(u.TypeOf(tile).Shape)
}

func uniform(u *ir.Unit, vals []ir.ValueID) bool {
	for _, v := range vals[1:] {
		if u.Value(v).Type != u.Value(vals[0]).Type {
			return false
		}
	}
	return true
}

func typesOf(u *ir.Unit, vals []ir.ValueID) []ir.TypeID {
	out := make([]ir.TypeID, len(vals))
	for i, v := range vals {
		out[i] = u.Value(v).Type
	}
	return out
}
