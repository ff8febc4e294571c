package blocking

import (
	"slices"

	"xeblock/internal/convert"
	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/shape"
)

// TilingConverter returns the converter applied to loops and conditionals
// once layouts have been propagated into tensor encodings:
//
//   - a workgroup layout splits the value into sgData tiles (or the shape
//     divided by sgLayout), one per replica, and drops sgLayout/sgData;
//   - an instData layout splits it into instData tiles and drops instData;
//   - anything else keeps its shape. Tensors go back to vectors.
//
// Descriptors are tiled the same way; their layout stays in the type.
func TilingConverter() *convert.TypeConverter {
	c := convert.NewTypeConverter()
	c.AddRule(func(types *ir.Types, id ir.TypeID) ([]ir.TypeID, convert.Result) {
		t := types.MustLookup(id)
		if t.Kind != ir.TypeTensor && t.Kind != ir.TypeTensorDesc {
			return nil, convert.NotApplicable
		}
		tile, count, l := tiling(t)
		if tile == nil {
			if t.Kind == ir.TypeTensor {
				return []ir.TypeID{types.Vector(t.Shape, t.Elem)}, convert.Converted
			}
			return nil, convert.NotApplicable
		}
		var tt ir.TypeID
		if t.Kind == ir.TypeTensor {
			tt = types.Vector(tile, t.Elem)
		} else {
			tt = types.WithLayout(types.WithShape(id, tile), l)
		}
		return slices.Repeat([]ir.TypeID{tt}, int(count)), convert.Converted
	})
	return c
}

// tiling returns the tile shape, the number of tiles and the layout the
// tiles keep. A nil tile means the type is not split.
func tiling(t ir.Type) (tile []int64, count int64, l *layout.Layout) {
	switch {
	case t.Layout.IsWgLayout():
		tile = shape.Clone(t.Layout.SgData)
		if tile == nil {
			grid, ok := shape.Ratio(t.Shape, t.Layout.SgLayout)
			if !ok {
				ir.Invariantf(ir.KindInvalid, "sg_layout %s does not divide %s",
					shape.String(t.Layout.SgLayout), shape.String(t.Shape))
			}
			tile = grid
		}
		if len(tile) != len(t.Shape) || len(t.Layout.SgLayout) != len(t.Shape) {
			ir.Invariantf(ir.KindInvalid, "workgroup layout %s does not match rank of %s", t.Layout, shape.String(t.Shape))
		}
		count = shape.Product(t.Shape) / shape.Product(shape.MulElementwise(t.Layout.SgLayout, tile))
		return tile, max(count, 1), t.Layout.DropSgLayoutAndData()
	case t.Layout.HasInstTiling():
		tile = shape.Clone(t.Layout.InstData)
		if _, ok := shape.Ratio(t.Shape, tile); !ok {
			ir.Invariantf(ir.KindInvalid, "inst_data %s does not divide %s", shape.String(tile), shape.String(t.Shape))
		}
		return tile, shape.Product(t.Shape) / shape.Product(tile), t.Layout.DropInstData()
	}
	return nil, 1, t.Layout
}

// UnrolledTypes expands t into the row-major tile types the unroll patterns
// produce for tile. A tile of lower rank covers the trailing dimensions.
// Descriptor tiles lose instData; vector tiles are plain vectors.
func UnrolledTypes(types *ir.Types, t ir.TypeID, tile []int64) []ir.TypeID {
	tt := types.MustLookup(t)
	if d := len(tt.Shape) - len(tile); d > 0 {
		tile = append(shape.Clone(tt.Shape[:d]), tile...)
	}
	ratio, ok := shape.Ratio(tt.Shape, tile)
	if !ok {
		ir.Invariantf(ir.KindInvalid, "tile %s does not divide %s", shape.String(tile), tt)
	}
	var tileType ir.TypeID
	if tt.Kind == ir.TypeTensorDesc {
		tileType = types.WithLayout(types.WithShape(t, tile), tt.Layout.DropInstData())
	} else {
		tileType = types.Vector(tile, tt.Elem)
	}
	return slices.Repeat([]ir.TypeID{tileType}, int(shape.Product(ratio)))
}
