// Package unroll expands operations into instruction-sized tiles.
//
// Each pattern splits the aggregate operands of one op into tiles through a
// pack adapter, emits one tile-sized op per tile (a grid for dpas) and joins
// the tile results through an unpack adapter. Adjacent unpack/pack pairs fold
// away in the rewrite driver; whatever survives is resolved into canonical
// assemble/decompose ops after the fixpoint.
package unroll

import (
	"slices"

	"github.com/samber/lo"

	"xeblock/internal/ir"
	"xeblock/internal/rewrite"
	"xeblock/internal/shape"
	"xeblock/internal/xegpu"
)

// Markers on the adapters the patterns insert.
const (
	AttrPack      = "__xegpu_blocking_pack__"
	AttrUnpack    = "__xegpu_blocking_unpack__"
	AttrTileShape = "__xegpu_blocking_tile_shape__"
)

// Options is the explicit configuration of the expansion.
type Options struct {
	// Filter selects the ops that still have to be unrolled.
	Filter func(u *ir.Unit, op ir.OpID) bool
	// NativeShape returns the tile shape of op, or nil when it has none.
	NativeShape func(u *ir.Unit, op ir.OpID) []int64
	// UnrolledTypes expands shaped type t into its row-major tile types.
	UnrolledTypes func(types *ir.Types, t ir.TypeID, tile []int64) []ir.TypeID
}

type unroller struct {
	opts Options
}

// Patterns returns the tile expansion patterns configured by opts.
func Patterns(opts Options) []rewrite.Pattern {
	p := &unroller{opts: opts}
	elementwise := lo.Filter(ir.AllKinds(), func(k ir.Kind, _ int) bool {
		return k.Has(ir.TraitElementwise)
	})
	return []rewrite.Pattern{
		{Name: "unroll-create-nd", Kinds: []ir.Kind{ir.KindCreateNdDesc}, Apply: p.createNd},
		{Name: "unroll-update-nd", Kinds: []ir.Kind{ir.KindUpdateNdOffset}, Apply: p.updateNd},
		{Name: "unroll-prefetch-nd", Kinds: []ir.Kind{ir.KindPrefetchNd}, Apply: p.prefetchNd},
		{Name: "unroll-load-nd", Kinds: []ir.Kind{ir.KindLoadNd}, Apply: p.loadNd},
		{Name: "unroll-store-nd", Kinds: []ir.Kind{ir.KindStoreNd}, Apply: p.storeNd},
		{Name: "unroll-dpas", Kinds: []ir.Kind{ir.KindDpas}, Apply: p.dpas},
		{Name: "unroll-elementwise", Kinds: elementwise, Apply: p.elementwise},
	}
}

func (p *unroller) tileOf(u *ir.Unit, op ir.OpID) []int64 {
	if p.opts.Filter != nil && !p.opts.Filter(u, op) {
		return nil
	}
	return p.opts.NativeShape(u, op)
}

// Pack splits v into tiles of the given types through a marked adapter.
func Pack(b *ir.Builder, v ir.ValueID, tiles []ir.TypeID, tile []int64) []ir.ValueID {
	return b.Glue([]ir.ValueID{v}, tiles, ir.Attrs{
		AttrPack:      ir.UnitAttr{},
		AttrTileShape: ir.IntsAttr(slices.Clone(tile)),
	})
}

// Unpack joins row-major tiles into one value of type t.
func Unpack(b *ir.Builder, tiles []ir.ValueID, t ir.TypeID, tile []int64) ir.ValueID {
	return b.Glue(tiles, []ir.TypeID{t}, ir.Attrs{
		AttrUnpack:    ir.UnitAttr{},
		AttrTileShape: ir.IntsAttr(slices.Clone(tile)),
	})[0]
}

func (p *unroller) createNd(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	o := u.Op(op)
	src, result := o.Operands[0], o.Results[0]
	base, _ := o.Attrs.Ints(xegpu.AttrOffsets)
	base = slices.Clone(base)
	rt := u.TypeOf(result)
	tileTypes := p.opts.UnrolledTypes(u.Types, u.Value(result).Type, tile)

	rank := len(rt.Shape)
	if len(base) < rank {
		base = append(make([]int64, rank-len(base)), base...)
	}
	b := rw.Before(op)
	descs := make([]ir.ValueID, 0, len(tileTypes))
	for i, off := range shape.TileOffsets(rt.Shape, tile) {
		offsets := slices.Clone(base)
		for d, x := range off {
			offsets[len(offsets)-rank+d] += x
		}
		descs = append(descs, xegpu.CreateNdDesc(b, src, offsets, tileTypes[i]))
	}
	rw.ReplaceOp(op, []ir.ValueID{Unpack(b, descs, u.Value(result).Type, tile)})
	rw.Debugf("create_nd split into %d descriptors", len(descs))
	return true
}

func (p *unroller) updateNd(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	o := u.Op(op)
	desc, result := o.Operands[0], o.Results[0]
	offsets, _ := o.Attrs.Ints(xegpu.AttrOffsets)
	descType := u.Value(desc).Type
	b := rw.Before(op)
	tiles := Pack(b, desc, p.opts.UnrolledTypes(u.Types, descType, tile), tile)
	updated := lo.Map(tiles, func(d ir.ValueID, _ int) ir.ValueID {
		return xegpu.UpdateNdOffset(b, d, offsets)
	})
	rw.ReplaceOp(op, []ir.ValueID{Unpack(b, updated, u.Value(result).Type, tile)})
	return true
}

func (p *unroller) prefetchNd(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	desc := u.Op(op).Operands[0]
	b := rw.Before(op)
	for _, d := range Pack(b, desc, p.opts.UnrolledTypes(u.Types, u.Value(desc).Type, tile), tile) {
		xegpu.PrefetchNd(b, d)
	}
	rw.EraseOp(op)
	return true
}

func (p *unroller) loadNd(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	o := u.Op(op)
	desc, result := o.Operands[0], o.Results[0]
	resultType := u.Value(result).Type
	vecTypes := p.opts.UnrolledTypes(u.Types, resultType, tile)
	b := rw.Before(op)
	descs := Pack(b, desc, p.opts.UnrolledTypes(u.Types, u.Value(desc).Type, tile), tile)
	if len(descs) != len(vecTypes) {
		ir.Invariantf(ir.KindLoadNd, "%d descriptor tiles for %d value tiles", len(descs), len(vecTypes))
	}
	loaded := make([]ir.ValueID, len(descs))
	for i, d := range descs {
		ld := b.Create(ir.KindLoadNd, []ir.ValueID{d}, []ir.TypeID{vecTypes[i]}, nil)
		loaded[i] = u.Op(ld).Results[0]
	}
	rw.ReplaceOp(op, []ir.ValueID{Unpack(b, loaded, resultType, tile)})
	return true
}

func (p *unroller) storeNd(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	o := u.Op(op)
	value, desc := o.Operands[0], o.Operands[1]
	b := rw.Before(op)
	vals := Pack(b, value, p.opts.UnrolledTypes(u.Types, u.Value(value).Type, tile), tile)
	descs := Pack(b, desc, p.opts.UnrolledTypes(u.Types, u.Value(desc).Type, tile), tile)
	if len(vals) != len(descs) {
		ir.Invariantf(ir.KindStoreNd, "%d value tiles for %d descriptor tiles", len(vals), len(descs))
	}
	for i := range vals {
		xegpu.StoreNd(b, vals[i], descs[i])
	}
	rw.EraseOp(op)
	return true
}

// dpas expands C[M,N] += A[M,K] * B[K,N] over an (M/m, N/n) grid of
// accumulators, each chained over K/k steps.
func (p *unroller) dpas(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	tile := p.tileOf(u, op)
	if len(tile) != 3 {
		return false
	}
	m, k, n := tile[0], tile[1], tile[2]
	o := u.Op(op)
	operands := slices.Clone(o.Operands)
	result := o.Results[0]
	aShape, bShape := u.TypeOf(operands[0]).Shape, u.TypeOf(operands[1]).Shape
	if len(aShape) != 2 || len(bShape) != 2 {
		return false
	}

	b := rw.Before(op)
	aTile, bTile, cTile := []int64{m, k}, []int64{k, n}, []int64{m, n}
	aVals := Pack(b, operands[0], p.opts.UnrolledTypes(u.Types, u.Value(operands[0]).Type, aTile), aTile)
	bVals := Pack(b, operands[1], p.opts.UnrolledTypes(u.Types, u.Value(operands[1]).Type, bTile), bTile)
	var cVals []ir.ValueID
	if len(operands) > 2 {
		cVals = Pack(b, operands[2], p.opts.UnrolledTypes(u.Types, u.Value(operands[2]).Type, cTile), cTile)
	}
	resultType := u.Value(result).Type
	resTile := p.opts.UnrolledTypes(u.Types, resultType, cTile)[0]

	mIters, kIters, nIters := aShape[0]/m, aShape[1]/k, bShape[1]/n
	var out []ir.ValueID
	for i := int64(0); i < mIters; i++ {
		for j := int64(0); j < nIters; j++ {
			acc := ir.NoValueID
			if cVals != nil {
				acc = cVals[i*nIters+j]
			}
			for kk := int64(0); kk < kIters; kk++ {
				acc = xegpu.Dpas(b, aVals[i*kIters+kk], bVals[kk*nIters+j], acc, resTile)
			}
			out = append(out, acc)
		}
	}
	rw.ReplaceOp(op, []ir.ValueID{Unpack(b, out, resultType, cTile)})
	rw.Debugf("dpas split into %dx%dx%d grid", mIters, nIters, kIters)
	return true
}

// elementwise clones a single-result elementwise op (splat constants
// included) once per tile, keeping its attributes.
func (p *unroller) elementwise(rw *rewrite.Rewriter, op ir.OpID) bool {
	u := rw.Unit()
	o := u.Op(op)
	if len(o.Results) != 1 {
		return false
	}
	tile := p.tileOf(u, op)
	if tile == nil {
		return false
	}
	kind := o.Kind
	attrs := o.Attrs
	operands := slices.Clone(o.Operands)
	resultType := u.Value(o.Results[0]).Type
	rs := u.Types.MustLookup(resultType).Shape
	for _, v := range operands {
		if t := u.TypeOf(v); t.Kind != ir.TypeVector || !shape.Equal(t.Shape, rs) {
			return false
		}
	}

	b := rw.Before(op)
	resTypes := p.opts.UnrolledTypes(u.Types, resultType, tile)
	split := lo.Map(operands, func(v ir.ValueID, _ int) []ir.ValueID {
		return Pack(b, v, p.opts.UnrolledTypes(u.Types, u.Value(v).Type, tile), tile)
	})
	out := lo.Times(len(resTypes), func(i int) ir.ValueID {
		args := lo.Map(split, func(tiles []ir.ValueID, _ int) ir.ValueID { return tiles[i] })
		clone := b.Create(kind, args, []ir.TypeID{resTypes[i]}, attrs.Clone())
		return u.Op(clone).Results[0]
	})
	rw.ReplaceOp(op, []ir.ValueID{Unpack(b, out, resultType, tile)})
	return true
}
