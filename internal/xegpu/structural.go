package xegpu

import (
	"context"
	"fmt"

	"xeblock/internal/convert"
	"xeblock/internal/ir"
	"xeblock/internal/trace"
)

// StructuralStats reports the work of ConvertSCFStructuralTypes.
type StructuralStats struct {
	Canonicalize convert.Stats
	Propagated   int
	Tile         convert.Stats
}

func (s StructuralStats) String() string {
	return fmt.Sprintf("canonicalize: %d rebuilt, propagate: %d types, tile: %d rebuilt %d glue",
		s.Canonicalize.Rebuilt, s.Propagated, s.Tile.Rebuilt, s.Tile.Patterns)
}

// ConvertSCFStructuralTypes rewrites the types carried by loops and
// conditionals in three steps. Vectors crossing structural boundaries are
// first turned into tensors so they can carry a layout encoding; the
// encodings are then propagated along glue, loop carries and yields until
// nothing changes; finally the structural ops are converted with tiling,
// which expands each encoded tensor into its tiles.
func ConvertSCFStructuralTypes(ctx context.Context, u *ir.Unit, tiling *convert.TypeConverter) (StructuralStats, error) {
	var st StructuralStats
	span, _ := trace.Start(ctx, trace.ScopePass, "scf-canonicalize")
	canon := convert.NewTypeConverter()
	canon.AddRule(func(types *ir.Types, id ir.TypeID) ([]ir.TypeID, convert.Result) {
		tt := types.MustLookup(id)
		if tt.Kind != ir.TypeVector {
			return nil, convert.NotApplicable
		}
		return []ir.TypeID{types.Tensor(tt.Shape, tt.Elem, nil)}, convert.Converted
	})
	var err error
	st.Canonicalize, err = convert.ApplyStructural(ctx, u, canon, convert.NewTarget(), convert.Options{Positional: IsLayoutName})
	span.End(fmt.Sprintf("rebuilt=%d", st.Canonicalize.Rebuilt))
	if err != nil {
		return st, err
	}

	span, _ = trace.Start(ctx, trace.ScopePass, "scf-propagate")
	st.Propagated = propagateEncodings(u)
	span.End(fmt.Sprintf("updated=%d", st.Propagated))

	span, _ = trace.Start(ctx, trace.ScopePass, "scf-tile")
	target := convert.NewTarget()
	target.AddDynamicallyLegal(ir.KindGlue, func(u *ir.Unit, op ir.OpID) bool {
		for _, id := range append(u.OperandTypes(op), u.ResultTypes(op)...) {
			if u.Types.MustLookup(id).Kind == ir.TypeTensor {
				return false
			}
		}
		return true
	})
	st.Tile, err = convert.ApplyStructural(ctx, u, tiling, target, convert.Options{
		Patterns:   []convert.Pattern{{Name: "glue-tensor", Kind: ir.KindGlue, Rewrite: convertTensorGlue}},
		Positional: IsLayoutName,
	})
	span.End(fmt.Sprintf("rebuilt=%d", st.Tile.Rebuilt))
	return st, err
}

// propagateEncodings copies layouts into tensor types until a fixpoint.
// A vector-to-tensor adapter takes the layout of its input; loop arguments
// follow their inits; results of for and if follow their yields; while
// results and after arguments follow the condition.
func propagateEncodings(u *ir.Unit) int {
	updated := 0
	set := func(v ir.ValueID, t ir.TypeID) bool {
		if u.Value(v).Type == t {
			return false
		}
		u.SetType(v, t)
		updated++
		return true
	}
	for {
		changed := false
		for _, op := range u.OpsOfKind(ir.KindGlue) {
			o := u.Op(op)
			if len(o.Operands) != 1 || len(o.Results) != 1 {
				continue
			}
			in, out := o.Operands[0], o.Results[0]
			if u.TypeOf(in).Kind != ir.TypeVector || u.TypeOf(out).Kind != ir.TypeTensor {
				continue
			}
			l := LayoutOf(u, in)
			if l == nil {
				continue
			}
			rt := u.TypeOf(out)
			enc := u.Types.Tensor(rt.Shape, rt.Elem, l)
			if set(out, enc) {
				changed = true
			}
			for _, use := range u.Uses(out) {
				for _, arg := range TiedArgs(u, use) {
					if set(arg, enc) {
						changed = true
					}
				}
			}
		}
		u.Walk(func(op ir.OpID) ir.WalkResult {
			o := u.Op(op)
			if o.Kind != ir.KindYield && o.Kind != ir.KindCondition {
				return ir.WalkAdvance
			}
			parent := u.ParentOp(op)
			if parent == ir.NoOpID {
				return ir.WalkAdvance
			}
			p := u.Op(parent)
			var targets [][]ir.ValueID
			vals := o.Operands
			switch {
			case o.Kind == ir.KindYield && (p.Kind == ir.KindFor || p.Kind == ir.KindIf):
				for _, r := range p.Results {
					targets = append(targets, []ir.ValueID{r})
				}
			case o.Kind == ir.KindCondition && p.Kind == ir.KindWhile:
				vals = vals[1:]
				after := u.Block(u.RegionEntry(p.Regions[1])).Args
				for i, r := range p.Results {
					ts := []ir.ValueID{r}
					if i < len(after) {
						ts = append(ts, after[i])
					}
					targets = append(targets, ts)
				}
			}
			for i, ts := range targets {
				if i >= len(vals) {
					break
				}
				yt := u.Value(vals[i]).Type
				for _, v := range ts {
					if u.TypeOf(v).Kind == ir.TypeTensor && set(v, yt) {
						changed = true
					}
				}
			}
			return ir.WalkAdvance
		})
		if !changed {
			return updated
		}
	}
}

// convertTensorGlue removes the tensor side of an adapter once tensors are
// being tiled. A vector-to-tensor adapter is replaced by its input; a
// tensor-to-vector adapter is re-pointed at whatever now stands for its
// input, and vanishes when that is already the vector it produces.
func convertTensorGlue(s *convert.State, op ir.OpID) bool {
	u := s.Unit()
	o := u.Op(op)
	if len(o.Operands) != 1 || len(o.Results) != 1 {
		return false
	}
	in, out := o.Operands[0], o.Results[0]
	it, ot := u.TypeOf(in), u.TypeOf(out)
	switch {
	case it.Kind == ir.TypeVector && ot.Kind == ir.TypeTensor:
		s.Replace(op, [][]ir.ValueID{{in}})
		return true
	case it.Kind == ir.TypeTensor && ot.Kind == ir.TypeVector:
		vals := s.Lookup(in)
		if len(vals) == 1 && vals[0] == in {
			return false
		}
		if len(vals) == 1 && u.Value(vals[0]).Type == u.Value(out).Type {
			u.ReplaceAllUsesWith(out, vals[0])
			s.Discard(op)
			return true
		}
		u.SetOperands(op, vals)
		return true
	}
	return false
}
