package blocking

import (
	"xeblock/internal/ir"
	"xeblock/internal/shape"
	"xeblock/internal/xegpu"
)

// family groups op kinds that resolve their tile shape the same way.
type family uint8

const (
	familyNone family = iota
	familyDescriptor
	familyLoad
	familyStore
	familyContraction
	familyElementwise
)

type tileRule func(u *ir.Unit, op ir.OpID) []int64

var familyRules = map[family]tileRule{
	familyNone:        func(*ir.Unit, ir.OpID) []int64 { return nil },
	familyDescriptor:  resultTile,
	familyLoad:        operandTile,
	familyStore:       operandTile,
	familyContraction: contractionTile,
	familyElementwise: elementwiseTile,
}

// tileRules maps every kind to the rule of its family.
var tileRules = buildTileRules()

func buildTileRules() map[ir.Kind]tileRule {
	rules := make(map[ir.Kind]tileRule, len(ir.AllKinds()))
	for _, k := range ir.AllKinds() {
		rules[k] = familyRules[familyOf(k)]
	}
	return rules
}

func familyOf(k ir.Kind) family {
	switch {
	case k == ir.KindCreateNdDesc, k == ir.KindUpdateNdOffset:
		return familyDescriptor
	case k == ir.KindPrefetchNd, k == ir.KindLoadNd:
		return familyLoad
	case k == ir.KindStoreNd:
		// operand 0 is the stored value; the descriptor only names the target
		return familyStore
	case k == ir.KindDpas:
		return familyContraction
	case k.Has(ir.TraitElementwise):
		return familyElementwise
	}
	return familyNone
}

// TileShapeOfOperand returns the instruction tile of operand i of op: the
// instData of its subgroup layout, or the operand's own shape when the layout
// has none. It returns nil when no subgroup layout governs the operand.
func TileShapeOfOperand(u *ir.Unit, op ir.OpID, i int) []int64 {
	o := u.Op(op)
	if i >= len(o.Operands) {
		return nil
	}
	l := xegpu.OperandLayout(u, op, i)
	if !l.IsSgLayout() {
		return nil
	}
	if l.HasInstTiling() {
		return shape.Clone(l.InstData)
	}
	return shape.Clone(u.TypeOf(o.Operands[i]).Shape)
}

// TileShapeOfResult is TileShapeOfOperand for result i.
func TileShapeOfResult(u *ir.Unit, op ir.OpID, i int) []int64 {
	o := u.Op(op)
	if i >= len(o.Results) {
		return nil
	}
	l := xegpu.ResultLayout(u, op, i)
	if !l.IsSgLayout() {
		return nil
	}
	if l.HasInstTiling() {
		return shape.Clone(l.InstData)
	}
	return shape.Clone(u.TypeOf(o.Results[i]).Shape)
}

// TileShapeOf returns the tile shape op should be unrolled to, or nil when
// the kind has no rule or the rule finds nothing. Dpas returns the 3-D
// [m, k, n] shape of one multiply step.
func TileShapeOf(u *ir.Unit, op ir.OpID) []int64 {
	rule, ok := tileRules[u.Op(op).Kind]
	if !ok {
		return nil
	}
	return rule(u, op)
}

func resultTile(u *ir.Unit, op ir.OpID) []int64 { return TileShapeOfResult(u, op, 0) }

func operandTile(u *ir.Unit, op ir.OpID) []int64 { return TileShapeOfOperand(u, op, 0) }

func elementwiseTile(u *ir.Unit, op ir.OpID) []int64 {
	if len(u.Op(op).Results) != 1 {
		return nil
	}
	return TileShapeOfResult(u, op, 0)
}

func contractionTile(u *ir.Unit, op ir.OpID) []int64 {
	tile, _ := contractionTiles(u, op)
	return tile
}

// contractionTiles resolves the dpas tile. When both A and B tiles resolve
// but do not chain, reason says why and the tile is nil.
func contractionTiles(u *ir.Unit, op ir.OpID) (tile []int64, reason string) {
	a := TileShapeOfOperand(u, op, 0)
	b := TileShapeOfOperand(u, op, 1)
	if len(a) != 2 || len(b) != 2 {
		return nil, ""
	}
	if a[1] != b[0] {
		return nil, "A tile " + shape.String(a) + " does not chain with B tile " + shape.String(b)
	}
	if len(u.Op(op).Operands) > 2 {
		c := TileShapeOfOperand(u, op, 2)
		want := []int64{a[0], b[1]}
		if c == nil {
			return nil, "C has no tile, want " + shape.String(want)
		}
		if !shape.Equal(c, want) {
			return nil, "C tile " + shape.String(c) + " is not " + shape.String(want)
		}
	}
	return []int64{a[0], a[1], b[1]}, ""
}
