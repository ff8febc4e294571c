package xegpu

import (
	"xeblock/internal/ir"
)

// Attribute names shared by the builders and the unroll patterns.
const (
	AttrOffsets = "const_offsets"
	AttrValue   = "value"
	AttrName    = "name"
)

// CreateNdDesc describes the block of src at offsets with descriptor type desc.
func CreateNdDesc(b *ir.Builder, src ir.ValueID, offsets []int64, desc ir.TypeID) ir.ValueID {
	op := b.Create(ir.KindCreateNdDesc, []ir.ValueID{src}, []ir.TypeID{desc},
		ir.Attrs{AttrOffsets: ir.IntsAttr(offsets)})
	return b.Unit().Op(op).Results[0]
}

// UpdateNdOffset shifts desc by offsets.
func UpdateNdOffset(b *ir.Builder, desc ir.ValueID, offsets []int64) ir.ValueID {
	u := b.Unit()
	op := b.Create(ir.KindUpdateNdOffset, []ir.ValueID{desc}, []ir.TypeID{u.Value(desc).Type},
		ir.Attrs{AttrOffsets: ir.IntsAttr(offsets)})
	return u.Op(op).Results[0]
}

// PrefetchNd prefetches the block described by desc.
func PrefetchNd(b *ir.Builder, desc ir.ValueID) ir.OpID {
	return b.Create(ir.KindPrefetchNd, []ir.ValueID{desc}, nil, nil)
}

// LoadedType is the vector type a load through a descriptor of type desc produces.
func LoadedType(types *ir.Types, desc ir.TypeID) ir.TypeID {
	t := types.MustLookup(desc)
	s := t.Shape
	if t.ArrayLength > 1 {
		s = append([]int64{t.ArrayLength}, s...)
	}
	return types.Vector(s, t.Elem)
}

// LoadNd loads the block described by desc.
func LoadNd(b *ir.Builder, desc ir.ValueID) ir.ValueID {
	u := b.Unit()
	op := b.Create(ir.KindLoadNd, []ir.ValueID{desc}, []ir.TypeID{LoadedType(u.Types, u.Value(desc).Type)}, nil)
	return u.Op(op).Results[0]
}

// StoreNd stores value through desc.
func StoreNd(b *ir.Builder, value, desc ir.ValueID) ir.OpID {
	return b.Create(ir.KindStoreNd, []ir.ValueID{value, desc}, nil, nil)
}

// Dpas multiplies a by bm and adds acc when acc is not NoValueID.
func Dpas(b *ir.Builder, a, bm, acc ir.ValueID, result ir.TypeID) ir.ValueID {
	operands := []ir.ValueID{a, bm}
	if acc != ir.NoValueID {
		operands = append(operands, acc)
	}
	op := b.Create(ir.KindDpas, operands, []ir.TypeID{result}, nil)
	return b.Unit().Op(op).Results[0]
}

// Binary applies the elementwise kind k to x and y.
func Binary(b *ir.Builder, k ir.Kind, x, y ir.ValueID) ir.ValueID {
	u := b.Unit()
	op := b.Create(k, []ir.ValueID{x, y}, []ir.TypeID{u.Value(x).Type}, nil)
	return u.Op(op).Results[0]
}

// Splat materializes a constant of type t with every element set to value.
func Splat(b *ir.Builder, t ir.TypeID, value float64) ir.ValueID {
	op := b.Create(ir.KindConstant, nil, []ir.TypeID{t}, ir.Attrs{AttrValue: ir.FloatAttr(value)})
	return b.Unit().Op(op).Results[0]
}

// Index materializes an index constant.
func Index(b *ir.Builder, value int64) ir.ValueID {
	u := b.Unit()
	op := b.Create(ir.KindConstant, nil, []ir.TypeID{u.Types.Index()}, ir.Attrs{AttrValue: ir.IntAttr(value)})
	return u.Op(op).Results[0]
}

// Opaque inserts an op the pipeline does not interpret.
func Opaque(b *ir.Builder, name string, operands []ir.ValueID, results []ir.TypeID) ir.OpID {
	return b.Create(ir.KindOpaque, operands, results, ir.Attrs{AttrName: ir.StringAttr(name)})
}

// For creates a counted loop carrying inits. The body block gets the
// induction variable followed by one argument per init and is left empty.
func For(b *ir.Builder, lb, ub, step ir.ValueID, inits ...ir.ValueID) (ir.OpID, ir.BlockID) {
	u := b.Unit()
	operands := append([]ir.ValueID{lb, ub, step}, inits...)
	types := make([]ir.TypeID, len(inits))
	for i, v := range inits {
		types[i] = u.Value(v).Type
	}
	op := b.Create(ir.KindFor, operands, types, nil)
	body := u.NewBlock(u.Op(op).Regions[0])
	u.AddBlockArg(body, u.Types.Index())
	for _, t := range types {
		u.AddBlockArg(body, t)
	}
	return op, body
}

// While creates a while loop. The before block takes the inits; the after
// block and the results take afterTypes.
func While(b *ir.Builder, inits []ir.ValueID, afterTypes []ir.TypeID) (op ir.OpID, before, after ir.BlockID) {
	u := b.Unit()
	op = b.Create(ir.KindWhile, inits, afterTypes, nil)
	regions := u.Op(op).Regions
	before = u.NewBlock(regions[0])
	for _, v := range inits {
		u.AddBlockArg(before, u.Value(v).Type)
	}
	after = u.NewBlock(regions[1])
	for _, t := range afterTypes {
		u.AddBlockArg(after, t)
	}
	return op, before, after
}

// If creates a conditional with empty then and else blocks.
func If(b *ir.Builder, cond ir.ValueID, results []ir.TypeID) (op ir.OpID, then, els ir.BlockID) {
	u := b.Unit()
	op = b.Create(ir.KindIf, []ir.ValueID{cond}, results, nil)
	regions := u.Op(op).Regions
	return op, u.NewBlock(regions[0]), u.NewBlock(regions[1])
}

func Yield(b *ir.Builder, vals ...ir.ValueID) ir.OpID {
	return b.Create(ir.KindYield, vals, nil, nil)
}

func Condition(b *ir.Builder, cond ir.ValueID, vals ...ir.ValueID) ir.OpID {
	return b.Create(ir.KindCondition, append([]ir.ValueID{cond}, vals...), nil, nil)
}

func Return(b *ir.Builder, vals ...ir.ValueID) ir.OpID {
	return b.Create(ir.KindReturn, vals, nil, nil)
}

// AttrTileShape records the tile shape on assemble and decompose ops.
const AttrTileShape = "tile_shape"

// Assemble builds a value of type t from row-major tiles.
func Assemble(b *ir.Builder, tiles []ir.ValueID, t ir.TypeID, tile []int64) ir.ValueID {
	op := b.Create(ir.KindAssemble, tiles, []ir.TypeID{t}, ir.Attrs{AttrTileShape: ir.IntsAttr(tile)})
	return b.Unit().Op(op).Results[0]
}

// Decompose splits v into row-major tiles of the given types.
func Decompose(b *ir.Builder, v ir.ValueID, tileTypes []ir.TypeID, tile []int64) []ir.ValueID {
	op := b.Create(ir.KindDecompose, []ir.ValueID{v}, tileTypes, ir.Attrs{AttrTileShape: ir.IntsAttr(tile)})
	return b.Unit().Op(op).Results
}
