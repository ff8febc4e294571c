package blocking_test

import (
	"testing"

	"xeblock/internal/blocking"
	"xeblock/internal/diag"
	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/xegpu"
)

func TestResolveGlueShapes(t *testing.T) {
	types := ir.NewTypes()
	whole := types.Vector([]int64{16, 16}, ir.ElemF32)
	tile := types.Vector([]int64{8, 16}, ir.ElemF32)
	half := types.Vector([]int64{8, 16}, ir.ElemF16)
	u := ir.NewUnitWithTypes("glue", types, tile, tile, half, whole)
	args := u.Args()
	b := u.AtEnd(u.Entry())

	joined := b.Glue([]ir.ValueID{args[0], args[1]}, []ir.TypeID{whole}, nil)
	split := b.Glue([]ir.ValueID{args[3]}, []ir.TypeID{tile, tile}, nil)
	mixed := b.Glue([]ir.ValueID{args[0], args[2]}, []ir.TypeID{whole}, nil)
	b.Glue(nil, []ir.TypeID{tile}, nil)
	xegpu.Return(b, joined[0], split[0], split[1], mixed[0])

	st := blocking.ResolveGlue(u)
	if st.Assembled != 1 || st.Decomposed != 1 || st.Erased != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(st.Skipped) != 1 || st.Skipped[0].Reason != diag.BlkGlueNotPackUnpack {
		t.Fatalf("the mixed-type adapter must be skipped, got %+v", st.Skipped)
	}
	if n := u.CountKind(ir.KindGlue); n != 1 {
		t.Fatalf("%d adapters left, want only the mixed one:\n%s", n, u)
	}
	asm := u.OpsOfKind(ir.KindAssemble)[0]
	if ts, _ := u.Op(asm).Attrs.Ints(xegpu.AttrTileShape); len(ts) != 2 || ts[0] != 8 || ts[1] != 16 {
		t.Fatalf("assemble tile shape %v, want the tile's own shape", ts)
	}
	if err := ir.Verify(u); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestResolveGlueKeepsUsedSourcelessAdapter(t *testing.T) {
	types := ir.NewTypes()
	vec := types.Vector([]int64{8, 16}, ir.ElemF32)
	u := ir.NewUnitWithTypes("sourceless", types)
	b := u.AtEnd(u.Entry())
	v := b.Glue(nil, []ir.TypeID{vec}, nil)
	xegpu.Return(b, v[0])

	st := blocking.ResolveGlue(u)
	if len(st.Skipped) != 1 || st.Skipped[0].Reason != diag.BlkGlueStillUsed {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestStripSideTable(t *testing.T) {
	types := ir.NewTypes()
	vec := types.Vector([]int64{32, 32}, ir.ElemF16)
	u := ir.NewUnitWithTypes("strip", types, vec)
	b := u.AtEnd(u.Entry())
	arg := u.Args()[0]
	l := &layout.Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}
	u.Value(arg).Layout = l

	sum := xegpu.Binary(b, ir.KindAddF, arg, arg)
	u.Value(sum).Layout = l
	lb, ub, step := xegpu.Index(b, 0), xegpu.Index(b, 4), xegpu.Index(b, 1)
	loop, body := xegpu.For(b, lb, ub, step, sum)
	u.Value(u.Op(loop).Results[0]).Layout = l
	xegpu.Yield(u.AtEnd(body), u.Block(body).Args[1])
	xegpu.Return(b, u.Op(loop).Results[0])

	n := xegpu.SetLayoutAttrs(u, func(v ir.ValueID) *layout.Layout { return xegpu.LayoutOf(u, v) })
	if n == 0 {
		t.Fatalf("no side-table entries were recorded")
	}
	u.Value(sum).Layout = nil
	u.Value(u.Op(loop).Results[0]).Layout = nil

	stripped, reattached := blocking.StripSideTable(u)
	if stripped != n {
		t.Fatalf("stripped %d entries, recorded %d", stripped, n)
	}
	if reattached != 1 {
		t.Fatalf("reattached %d layouts, want only the add result", reattached)
	}
	if got := u.Value(sum).Layout; !got.Equal(l.DropInstData()) {
		t.Fatalf("add result layout %s, want %s", got, l.DropInstData())
	}
	if u.Value(u.Op(loop).Results[0]).Layout != nil {
		t.Fatalf("loop results have no layout slot")
	}
	for _, op := range u.Ops() {
		for _, k := range u.Op(op).Attrs.Keys() {
			if xegpu.IsLayoutName(k) {
				t.Fatalf("%s kept %s", u.Op(op).Kind, k)
			}
		}
	}
}
