package xegpu

import (
	"github.com/pkg/errors"

	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/shape"
)

// ErrNotDistributable reports a type whose layout cannot be split across lanes.
var ErrNotDistributable = errors.New("xegpu: type is not distributable")

// DistributedVectorType returns the per-lane vector type of a descriptor:
// the elements one lane of the subgroup holds once the block is spread over
// the lane layout.
func DistributedVectorType(types *ir.Types, desc ir.TypeID) (ir.TypeID, error) {
	t, ok := types.Lookup(desc)
	if !ok || t.Kind != ir.TypeTensorDesc {
		return ir.NoTypeID, errors.Wrapf(ErrNotDistributable, "type %d is not a tensor descriptor", desc)
	}
	s, err := laneShape(t, t.Layout)
	if err != nil {
		return ir.NoTypeID, err
	}
	return types.Vector(s, t.Elem), nil
}

// DistributedVectorTypeFor is DistributedVectorType for a register value
// laid out by l. A rank 3 vector is read as an array of rank 2 blocks.
func DistributedVectorTypeFor(types *ir.Types, vec ir.TypeID, l *layout.Layout) (ir.TypeID, error) {
	t, ok := types.Lookup(vec)
	if !ok || t.Kind != ir.TypeVector {
		return ir.NoTypeID, errors.Wrapf(ErrNotDistributable, "type %d is not a vector", vec)
	}
	if r := t.Rank(); r < 1 || r > 3 {
		return ir.NoTypeID, errors.Wrapf(ErrNotDistributable, "%s: rank %d", t, r)
	}
	desc := ir.Type{Kind: ir.TypeTensorDesc, Elem: t.Elem, Shape: t.Shape, ArrayLength: 1}
	if t.Rank() == 3 {
		desc.ArrayLength = t.Shape[0]
		desc.Shape = t.Shape[1:]
	}
	s, err := laneShape(desc, l)
	if err != nil {
		return ir.NoTypeID, errors.WithMessagef(err, "vector %s", t)
	}
	return types.Vector(s, t.Elem), nil
}

func laneShape(t ir.Type, l *layout.Layout) ([]int64, error) {
	if l == nil || !l.IsSgLayout() {
		return nil, errors.Wrapf(ErrNotDistributable, "%s: no subgroup layout", t)
	}
	if len(l.LaneLayout) == 0 || len(l.LaneData) != len(l.LaneLayout) {
		return nil, errors.Wrapf(ErrNotDistributable, "%s: lane layout missing", t)
	}
	lanes := shape.Product(l.LaneLayout)
	if t.Scattered {
		if t.Rank() == 0 || t.Shape[0] != l.LaneLayout[0] {
			return nil, errors.Errorf("%s: leading dimension must equal %d lanes", t, l.LaneLayout[0])
		}
		chunk := t.ChunkSize
		if chunk < 1 {
			chunk = 1
		}
		return []int64{chunk}, nil
	}
	if len(l.LaneLayout) != t.Rank() {
		return nil, errors.Errorf("%s: lane layout rank %d does not match", t, len(l.LaneLayout))
	}
	for i, dim := range t.Shape {
		if w := l.LaneLayout[i] * l.LaneData[i]; w == 0 || dim%w != 0 {
			return nil, errors.Errorf("%s: dimension %d of size %d is not a multiple of %d", t, i, dim, w)
		}
	}
	n := shape.Product(t.Shape)
	if t.ArrayLength > 1 {
		n *= t.ArrayLength
	}
	return []int64{n / lanes}, nil
}
