// Package testkit holds invariant checks shared by the pass tests.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"xeblock/internal/ir"
	"xeblock/internal/shape"
	"xeblock/internal/unroll"
	"xeblock/internal/xegpu"
)

// CheckBlocked runs the invariants every blocked unit must satisfy:
// 1) the unit verifies
// 2) no op carries a layout_operand_N / layout_result_N attribute
// 3) no pack or unpack adapter survives
// 4) every subgroup-level assemble/decompose joins tiles that exactly cover
//    the whole value
func CheckBlocked(u *ir.Unit) error {
	if u == nil {
		return fmt.Errorf("nil unit")
	}
	if err := ir.Verify(u); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	var errs []error
	u.Walk(func(op ir.OpID) ir.WalkResult {
		o := u.Op(op)
		for _, k := range o.Attrs.Keys() {
			if xegpu.IsLayoutName(k) {
				errs = append(errs, fmt.Errorf("op %d (%s): side-table entry %s left behind", op, o.Kind, k))
			}
		}
		switch o.Kind {
		case ir.KindGlue:
			if o.Attrs.Has(unroll.AttrPack) || o.Attrs.Has(unroll.AttrUnpack) {
				errs = append(errs, fmt.Errorf("op %d: unresolved blocking adapter", op))
			}
		case ir.KindAssemble:
			if err := checkCover(u, op, u.TypeOf(o.Results[0]), o.Operands); err != nil {
				errs = append(errs, err)
			}
		case ir.KindDecompose:
			if err := checkCover(u, op, u.TypeOf(o.Operands[0]), o.Results); err != nil {
				errs = append(errs, err)
			}
		}
		return ir.WalkAdvance
	})
	return errors.Join(errs...)
}

func checkCover(u *ir.Unit, op ir.OpID, t ir.Type, tiles []ir.ValueID) error {
	o := u.Op(op)
	if t.Layout.IsWgLayout() {
		// subgroup pieces of a workgroup value only cover it across the grid
		return nil
	}
	whole := t.Shape
	tile, ok := o.Attrs.Ints(xegpu.AttrTileShape)
	if !ok {
		return fmt.Errorf("op %d (%s): missing %s", op, o.Kind, xegpu.AttrTileShape)
	}
	if len(tile) > len(whole) {
		return fmt.Errorf("op %d (%s): tile %s outranks %s", op, o.Kind, shape.String(tile), shape.String(whole))
	}
	// a lower-rank tile spans the leading dimensions whole
	tile = append(shape.Clone(whole[:len(whole)-len(tile)]), tile...)
	ratio, ok := shape.Ratio(whole, tile)
	if !ok {
		return fmt.Errorf("op %d (%s): tile %s does not divide %s", op, o.Kind, shape.String(tile), shape.String(whole))
	}
	n, err := safecast.Conv[int64](len(tiles))
	if err != nil {
		return fmt.Errorf("op %d (%s): tile count overflow: %w", op, o.Kind, err)
	}
	if want := shape.Product(ratio); n != want {
		return fmt.Errorf("op %d (%s): %d tiles, want %d", op, o.Kind, n, want)
	}
	for i, v := range tiles {
		got := u.TypeOf(v).Shape
		if len(got) > len(tile) || !shape.Equal(got, tile[len(tile)-len(got):]) {
			return fmt.Errorf("op %d (%s): tile %d has shape %s, want %s", op, o.Kind, i, shape.String(got), shape.String(tile))
		}
	}
	return nil
}
