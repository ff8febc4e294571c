// Package fixtures builds the canonical units the blocking pass is tested
// and demonstrated on. Each builder returns a fresh unit.
package fixtures

import (
	"slices"
	"sort"

	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/xegpu"
)

// Builder makes one fixture unit.
type Builder func() *ir.Unit

var registry = map[string]Builder{
	"add":         func() *ir.Unit { return ElementwiseAdd([]int64{32, 32}, []int64{8, 16}) },
	"gemm":        GEMM,
	"while":       WhileCarry,
	"workgroup":   WorkgroupLoop,
	"contraction": func() *ir.Unit { return Contraction([]int64{8, 16}, []int64{16, 32}) },
	"mismatch": func() *ir.Unit {
		u := Contraction([]int64{8, 16}, []int64{24, 32})
		u.Name = "mismatch"
		return u
	},
}

// Names lists the registered fixtures in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Builder, bool) {
	b, ok := registry[name]
	return b, ok
}

func inst(tile ...int64) *layout.Layout {
	return &layout.Layout{InstData: slices.Clone(tile)}
}

// ElementwiseAdd adds two vectors of shape s laid out with instData tile.
func ElementwiseAdd(s, tile []int64) *ir.Unit {
	types := ir.NewTypes()
	vec := types.Vector(s, ir.ElemF16)
	u := ir.NewUnitWithTypes("add", types, vec, vec)
	args := u.Args()
	for _, a := range args {
		u.Value(a).Layout = inst(tile...)
	}
	b := u.AtEnd(u.Entry())
	sum := xegpu.Binary(b, ir.KindAddF, args[0], args[1])
	u.Value(sum).Layout = inst(tile...)
	xegpu.Return(b, sum)
	return u
}

// GEMM computes C[32x32] += A[32x64] * B[64x32] in a loop over K with step
// 32. A is tiled 8x16, B 16x16 and C 8x16, so one multiply step is
// [8, 16, 16] and the loop body holds 4x2x2 dpas tiles.
func GEMM() *ir.Unit {
	types := ir.NewTypes()
	memA := types.Memref([]int64{32, 64}, ir.ElemF16)
	memB := types.Memref([]int64{64, 32}, ir.ElemF16)
	memC := types.Memref([]int64{32, 32}, ir.ElemF32)
	u := ir.NewUnitWithTypes("gemm", types, memA, memB, memC)
	args := u.Args()
	b := u.AtEnd(u.Entry())

	descA := xegpu.CreateNdDesc(b, args[0], []int64{0, 0}, types.TensorDesc([]int64{32, 32}, ir.ElemF16, inst(8, 16)))
	descB := xegpu.CreateNdDesc(b, args[1], []int64{0, 0}, types.TensorDesc([]int64{32, 32}, ir.ElemF16, inst(16, 16)))
	descC := xegpu.CreateNdDesc(b, args[2], []int64{0, 0}, types.TensorDesc([]int64{32, 32}, ir.ElemF32, inst(8, 16)))
	acc := xegpu.LoadNd(b, descC)

	lb, ub, step := xegpu.Index(b, 0), xegpu.Index(b, 64), xegpu.Index(b, 32)
	loop, body := xegpu.For(b, lb, ub, step, acc, descA, descB)
	u.Value(u.Op(loop).Results[0]).Layout = inst(8, 16)

	bargs := u.Block(body).Args
	in := u.AtEnd(body)
	a := xegpu.LoadNd(in, bargs[2])
	bm := xegpu.LoadNd(in, bargs[3])
	d := xegpu.Dpas(in, a, bm, bargs[1], u.Value(acc).Type)
	u.Value(d).Layout = inst(8, 16)
	nextA := xegpu.UpdateNdOffset(in, bargs[2], []int64{0, 32})
	nextB := xegpu.UpdateNdOffset(in, bargs[3], []int64{32, 0})
	xegpu.Yield(in, d, nextA, nextB)

	xegpu.StoreNd(b, u.Op(loop).Results[0], descC)
	xegpu.Return(b)
	return u
}

// WhileCarry carries a 16x32 accumulator tiled 8x16 through a while loop
// whose after region doubles it.
func WhileCarry() *ir.Unit {
	types := ir.NewTypes()
	vec := types.Vector([]int64{16, 32}, ir.ElemF32)
	u := ir.NewUnitWithTypes("while", types)
	b := u.AtEnd(u.Entry())

	init := xegpu.Splat(b, vec, 1)
	u.Value(init).Layout = inst(8, 16)
	loop, before, after := xegpu.While(b, []ir.ValueID{init}, []ir.TypeID{vec})
	u.Value(u.Op(loop).Results[0]).Layout = inst(8, 16)

	cb := u.AtEnd(before)
	cond := xegpu.Opaque(cb, "continue", nil, []ir.TypeID{types.Scalar(ir.ElemI1)})
	xegpu.Condition(cb, u.Op(cond).Results[0], u.Block(before).Args[0])

	ab := u.AtEnd(after)
	y := u.Block(after).Args[0]
	twice := xegpu.Binary(ab, ir.KindAddF, y, y)
	u.Value(twice).Layout = inst(8, 16)
	xegpu.Yield(ab, twice)

	xegpu.Return(b, u.Op(loop).Results[0])
	return u
}

// WorkgroupLoop walks a 64x64 descriptor still laid out for a 2x2 grid of
// subgroups through a loop. The pass tiles the loop carry into subgroup
// pieces but leaves the descriptor ops alone.
func WorkgroupLoop() *ir.Unit {
	types := ir.NewTypes()
	mem := types.Memref([]int64{64, 128}, ir.ElemF16)
	u := ir.NewUnitWithTypes("workgroup", types, mem)
	b := u.AtEnd(u.Entry())

	wg := &layout.Layout{
		SgLayout:   []int64{2, 2},
		SgData:     []int64{16, 16},
		LaneLayout: []int64{1, 16},
		LaneData:   []int64{1, 1},
	}
	desc := xegpu.CreateNdDesc(b, u.Args()[0], []int64{0, 0}, types.TensorDesc([]int64{64, 64}, ir.ElemF16, wg))
	lb, ub, step := xegpu.Index(b, 0), xegpu.Index(b, 128), xegpu.Index(b, 64)
	loop, body := xegpu.For(b, lb, ub, step, desc)

	in := u.AtEnd(body)
	cur := u.Block(body).Args[1]
	xegpu.PrefetchNd(in, cur)
	xegpu.Yield(in, xegpu.UpdateNdOffset(in, cur, []int64{0, 64}))

	xegpu.PrefetchNd(b, u.Op(loop).Results[0])
	xegpu.Return(b)
	return u
}

// Contraction multiplies an A operand tiled aTile by a B operand tiled bTile
// without an accumulator. A is four A tiles in each dimension; B matches
// A's columns and is four B tiles wide.
func Contraction(aTile, bTile []int64) *ir.Unit {
	types := ir.NewTypes()
	aVec := types.Vector([]int64{4 * aTile[0], 4 * aTile[1]}, ir.ElemF16)
	bVec := types.Vector([]int64{4 * aTile[1], 4 * bTile[1]}, ir.ElemF16)
	cVec := types.Vector([]int64{4 * aTile[0], 4 * bTile[1]}, ir.ElemF32)
	u := ir.NewUnitWithTypes("contraction", types, aVec, bVec)
	args := u.Args()
	u.Value(args[0]).Layout = inst(aTile...)
	u.Value(args[1]).Layout = inst(bTile...)
	b := u.AtEnd(u.Entry())
	d := xegpu.Dpas(b, args[0], args[1], ir.NoValueID, cVec)
	u.Value(d).Layout = inst(aTile[0], bTile[1])
	xegpu.Return(b, d)
	return u
}
