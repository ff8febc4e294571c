package blocking

import (
	"xeblock/internal/ir"
	"xeblock/internal/shape"
)

type verdict uint8

const (
	verdictInconclusive verdict = iota
	verdictUnroll
	verdictKeep
)

// NeedsUnroll reports whether op still has to be split into tiles.
//
// Loops never are; their bodies are handled by the structural conversion.
// Otherwise operands, then results, are classified in order and the first
// determinate answer wins. A value under a workgroup layout has no tile shape
// and decides nothing; a descriptor typed with one keeps the op.
func NeedsUnroll(u *ir.Unit, op ir.OpID) bool {
	o := u.Op(op)
	if o.Kind.Has(ir.TraitLoopLike) {
		return false
	}
	for i, v := range o.Operands {
		if r := classify(u, v, TileShapeOfOperand(u, op, i)); r != verdictInconclusive {
			return r == verdictUnroll
		}
	}
	for i, v := range o.Results {
		if r := classify(u, v, TileShapeOfResult(u, op, i)); r != verdictInconclusive {
			return r == verdictUnroll
		}
	}
	return false
}

func classify(u *ir.Unit, v ir.ValueID, tile []int64) verdict {
	if tile == nil {
		return verdictInconclusive
	}
	t := u.TypeOf(v)
	if t.Kind == ir.TypeTensorDesc || (t.Kind == ir.TypeTensor && t.Layout != nil) {
		switch {
		case t.Layout.IsWgLayout():
			return verdictKeep
		case t.Layout.HasInstTiling():
			return verdictUnroll
		}
		return verdictInconclusive
	}
	if t.IsShaped() && !shape.Equal(t.Shape, tile) {
		return verdictUnroll
	}
	return verdictInconclusive
}
