package xegpu_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/xegpu"
)

func TestLayoutNameRoundTrip(t *testing.T) {
	for _, pos := range []xegpu.Position{xegpu.Operand, xegpu.Result} {
		for _, idx := range []int{0, 3, 12} {
			name := xegpu.LayoutName(pos, idx)
			if !xegpu.IsLayoutName(name) {
				t.Fatalf("%s not recognised", name)
			}
			gotPos, gotIdx, ok := xegpu.ParseLayoutName(name)
			if !ok || gotPos != pos || gotIdx != idx {
				t.Fatalf("ParseLayoutName(%s) = %v, %d, %v", name, gotPos, gotIdx, ok)
			}
		}
	}
	for _, bad := range []string{"layout_operand_", "layout_result_x", "layout_result_-1", "tile_shape"} {
		if _, _, ok := xegpu.ParseLayoutName(bad); ok {
			t.Errorf("ParseLayoutName(%q) accepted", bad)
		}
	}
}

func TestLayoutOfLookupOrder(t *testing.T) {
	types := ir.NewTypes()
	descLayout := &layout.Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}
	attached := &layout.Layout{InstData: []int64{16, 16}}
	table := &layout.Layout{InstData: []int64{4, 16}}

	mem := types.Memref([]int64{32, 32}, ir.ElemF16)
	u := ir.NewUnitWithTypes("lookup", types, mem)
	b := u.AtEnd(u.Entry())
	desc := xegpu.CreateNdDesc(b, u.Args()[0], []int64{0, 0}, types.TensorDesc([]int64{32, 32}, ir.ElemF16, descLayout))
	loaded := xegpu.LoadNd(b, desc)
	sum := xegpu.Binary(b, ir.KindAddF, loaded, loaded)
	u.Value(sum).Layout = attached
	prod := xegpu.Binary(b, ir.KindMulF, sum, sum)
	u.Op(u.Value(prod).Def).Attrs = ir.Attrs{xegpu.LayoutName(xegpu.Result, 0): ir.LayoutAttr{Layout: table}}
	bare := xegpu.Binary(b, ir.KindSubF, prod, prod)

	c0 := xegpu.Index(b, 0)
	loop, body := xegpu.For(b, c0, c0, c0, sum)
	carried := u.Block(body).Args[1]
	xegpu.Yield(u.AtEnd(body), carried)

	for _, tc := range []struct {
		name string
		v    ir.ValueID
		want *layout.Layout
	}{
		{"descriptor type", desc, descLayout},
		{"load through descriptor", loaded, descLayout},
		{"attached", sum, attached},
		{"side table", prod, table},
		{"nothing", bare, nil},
		{"loop argument follows init", carried, attached},
		{"induction variable", u.Block(body).Args[0], nil},
	} {
		if got := xegpu.LayoutOf(u, tc.v); !got.Equal(tc.want) {
			t.Errorf("%s: LayoutOf = %s, want %s", tc.name, got, tc.want)
		}
	}
	if got := xegpu.TiedInit(u, carried); got != sum {
		t.Fatalf("TiedInit = %d, want %d", got, sum)
	}
	uses := u.Uses(sum)
	var loopUse ir.Use
	for _, use := range uses {
		if use.Op == loop {
			loopUse = use
		}
	}
	if diff := cmp.Diff([]ir.ValueID{carried}, xegpu.TiedArgs(u, loopUse)); diff != "" {
		t.Fatalf("TiedArgs (-want +got):\n%s", diff)
	}
}

func TestSetLayoutAttrsKeepsExistingEntries(t *testing.T) {
	types := ir.NewTypes()
	vec := types.Vector([]int64{16, 16}, ir.ElemF32)
	u := ir.NewUnitWithTypes("table", types, vec)
	arg := u.Args()[0]
	l := &layout.Layout{InstData: []int64{8, 16}}
	u.Value(arg).Layout = l
	b := u.AtEnd(u.Entry())
	sum := xegpu.Binary(b, ir.KindAddF, arg, arg)
	op := u.Value(sum).Def
	pinned := &layout.Layout{InstData: []int64{16, 16}}
	u.Op(op).Attrs = ir.Attrs{xegpu.LayoutName(xegpu.Operand, 1): ir.LayoutAttr{Layout: pinned}}

	n := xegpu.SetLayoutAttrs(u, func(v ir.ValueID) *layout.Layout { return xegpu.LayoutOf(u, v) })
	// operand 0 only: operand 1 is pinned and the result has no layout
	if n != 1 {
		t.Fatalf("SetLayoutAttrs wrote %d entries, want 1", n)
	}
	if got := xegpu.OperandLayout(u, op, 0); !got.Equal(l) {
		t.Fatalf("operand 0 layout %s", got)
	}
	if got := xegpu.OperandLayout(u, op, 1); !got.Equal(pinned) {
		t.Fatalf("pinned operand 1 layout was replaced by %s", got)
	}
}

func TestDistributedVectorType(t *testing.T) {
	types := ir.NewTypes()
	lanes := &layout.Layout{LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}

	block := types.TensorDesc([]int64{8, 16}, ir.ElemF16, lanes)
	array := types.Intern(ir.Type{Kind: ir.TypeTensorDesc, Elem: ir.ElemF16, Shape: []int64{8, 16}, Layout: lanes, ArrayLength: 2})
	scattered := types.Intern(ir.Type{
		Kind: ir.TypeTensorDesc, Elem: ir.ElemF32, Shape: []int64{16, 8}, ArrayLength: 1,
		Scattered: true, ChunkSize: 8,
		Layout: &layout.Layout{LaneLayout: []int64{16, 1}, LaneData: []int64{1, 1}},
	})
	for _, tc := range []struct {
		name string
		desc ir.TypeID
		want []int64
	}{
		{"block", block, []int64{8}},
		{"array", array, []int64{16}},
		{"scattered", scattered, []int64{8}},
	} {
		got, err := xegpu.DistributedVectorType(types, tc.desc)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.want, types.MustLookup(got).Shape); diff != "" {
			t.Errorf("%s: lane shape (-want +got):\n%s", tc.name, diff)
		}
	}

	vec3 := types.Vector([]int64{2, 8, 16}, ir.ElemF16)
	got, err := xegpu.DistributedVectorTypeFor(types, vec3, lanes)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{16}, types.MustLookup(got).Shape); diff != "" {
		t.Errorf("rank 3 vector lane shape (-want +got):\n%s", diff)
	}
}

func TestDistributedVectorTypeRejects(t *testing.T) {
	types := ir.NewTypes()
	lanes := &layout.Layout{LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}

	noLanes := types.TensorDesc([]int64{8, 16}, ir.ElemF16, &layout.Layout{InstData: []int64{8, 16}})
	if _, err := xegpu.DistributedVectorType(types, noLanes); !errors.Is(err, xegpu.ErrNotDistributable) {
		t.Errorf("missing lane layout: got %v", err)
	}
	wg := types.TensorDesc([]int64{8, 16}, ir.ElemF16, &layout.Layout{SgLayout: []int64{1, 1}, SgData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}})
	if _, err := xegpu.DistributedVectorType(types, wg); !errors.Is(err, xegpu.ErrNotDistributable) {
		t.Errorf("workgroup layout: got %v", err)
	}
	if _, err := xegpu.DistributedVectorType(types, types.Vector([]int64{8, 16}, ir.ElemF16)); !errors.Is(err, xegpu.ErrNotDistributable) {
		t.Errorf("vector passed as descriptor: got %v", err)
	}
	odd := types.TensorDesc([]int64{8, 15}, ir.ElemF16, lanes)
	if _, err := xegpu.DistributedVectorType(types, odd); err == nil {
		t.Errorf("15 columns over 16 lanes must fail")
	}
}
