package blocking_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"xeblock/internal/blocking"
	"xeblock/internal/fixtures"
	"xeblock/internal/ir"
	"xeblock/internal/layout"
	"xeblock/internal/xegpu"
)

func TestContractionTieBreak(t *testing.T) {
	tests := []struct {
		name     string
		aTile    []int64
		bTile    []int64
		want     []int64
		unrolled bool
	}{
		{name: "chained", aTile: []int64{8, 16}, bTile: []int64{16, 32}, want: []int64{8, 16, 32}},
		{name: "mismatched", aTile: []int64{8, 16}, bTile: []int64{24, 32}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := fixtures.Contraction(tt.aTile, tt.bTile)
			dpas := u.OpsOfKind(ir.KindDpas)[0]
			got := blocking.TileShapeOf(u, dpas)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("TileShapeOf (-want +got):\n%s", diff)
			}
			// Referentially transparent on an unchanged op.
			if diff := cmp.Diff(got, blocking.TileShapeOf(u, dpas)); diff != "" {
				t.Fatalf("second query differs:\n%s", diff)
			}
		})
	}
}

func TestContractionAccumulatorMustMatch(t *testing.T) {
	types := ir.NewTypes()
	a := types.Vector([]int64{32, 32}, ir.ElemF16)
	c := types.Vector([]int64{32, 32}, ir.ElemF32)
	u := ir.NewUnitWithTypes("acc", types, a, a, c)
	args := u.Args()
	u.Value(args[0]).Layout = &layout.Layout{InstData: []int64{8, 16}}
	u.Value(args[1]).Layout = &layout.Layout{InstData: []int64{16, 16}}
	u.Value(args[2]).Layout = &layout.Layout{InstData: []int64{16, 16}}
	b := u.AtEnd(u.Entry())
	d := xegpu.Dpas(b, args[0], args[1], args[2], c)
	xegpu.Return(b, d)

	if got := blocking.TileShapeOf(u, u.Value(d).Def); got != nil {
		t.Fatalf("accumulator tile 16x16 does not match 8x16, got %v", got)
	}
	u.Value(args[2]).Layout = &layout.Layout{InstData: []int64{8, 16}}
	if diff := cmp.Diff([]int64{8, 16, 16}, blocking.TileShapeOf(u, u.Value(d).Def)); diff != "" {
		t.Fatalf("TileShapeOf (-want +got):\n%s", diff)
	}
}

func TestStoreTakesValueTile(t *testing.T) {
	types := ir.NewTypes()
	mem := types.Memref([]int64{64, 64}, ir.ElemF16)
	vec := types.Vector([]int64{32, 32}, ir.ElemF16)
	u := ir.NewUnitWithTypes("store", types, mem, vec)
	args := u.Args()
	u.Value(args[1]).Layout = &layout.Layout{InstData: []int64{8, 16}}
	b := u.AtEnd(u.Entry())
	desc := xegpu.CreateNdDesc(b, args[0], []int64{0, 0},
		types.TensorDesc([]int64{32, 32}, ir.ElemF16, &layout.Layout{InstData: []int64{16, 16}}))
	store := xegpu.StoreNd(b, args[1], desc)
	xegpu.Return(b)

	if diff := cmp.Diff([]int64{8, 16}, blocking.TileShapeOf(u, store)); diff != "" {
		t.Fatalf("store tile (-want +got):\n%s", diff)
	}
	if !blocking.NeedsUnroll(u, store) {
		t.Fatalf("store of a 32x32 value tiled 8x16 needs unrolling")
	}
}

func TestTileShapeOfDispatch(t *testing.T) {
	u := fixtures.GEMM()
	want := map[ir.Kind][]int64{
		ir.KindCreateNdDesc:   {8, 16},
		ir.KindLoadNd:         {8, 16},
		ir.KindUpdateNdOffset: {8, 16},
		ir.KindStoreNd:        {8, 16},
		ir.KindDpas:           {8, 16, 16},
	}
	for _, op := range u.Ops() {
		k := u.Op(op).Kind
		got := blocking.TileShapeOf(u, op)
		w, ok := want[k]
		if !ok {
			if got != nil {
				t.Fatalf("%s has no rule but resolved %v", k, got)
			}
			continue
		}
		// the first create_nd, load and update of each kind are the A or C ones
		if k == ir.KindCreateNdDesc || k == ir.KindLoadNd || k == ir.KindUpdateNdOffset {
			if got == nil {
				t.Fatalf("%s did not resolve", k)
			}
			continue
		}
		if diff := cmp.Diff(w, got); diff != "" {
			t.Fatalf("%s tile (-want +got):\n%s", k, diff)
		}
	}
}

func TestNeedsUnroll(t *testing.T) {
	wgLayout := &layout.Layout{SgLayout: []int64{2, 2}, SgData: []int64{16, 16}}
	tests := []struct {
		name  string
		build func() (*ir.Unit, ir.OpID)
		want  bool
	}{
		{"loop", func() (*ir.Unit, ir.OpID) {
			u := fixtures.GEMM()
			return u, u.OpsOfKind(ir.KindFor)[0]
		}, false},
		{"workgroup descriptor", func() (*ir.Unit, ir.OpID) {
			u := fixtures.WorkgroupLoop()
			return u, u.OpsOfKind(ir.KindCreateNdDesc)[0]
		}, false},
		{"already tile shaped", func() (*ir.Unit, ir.OpID) {
			u := fixtures.ElementwiseAdd([]int64{8, 16}, []int64{8, 16})
			return u, u.OpsOfKind(ir.KindAddF)[0]
		}, false},
		{"tiled add", func() (*ir.Unit, ir.OpID) {
			u := fixtures.ElementwiseAdd([]int64{32, 32}, []int64{8, 16})
			return u, u.OpsOfKind(ir.KindAddF)[0]
		}, true},
		{"operand decides before workgroup result", func() (*ir.Unit, ir.OpID) {
			u := fixtures.ElementwiseAdd([]int64{32, 32}, []int64{8, 16})
			add := u.OpsOfKind(ir.KindAddF)[0]
			u.Value(u.Op(add).Results[0]).Layout = wgLayout
			return u, add
		}, true},
		{"workgroup operands only", func() (*ir.Unit, ir.OpID) {
			u := fixtures.ElementwiseAdd([]int64{32, 32}, []int64{8, 16})
			add := u.OpsOfKind(ir.KindAddF)[0]
			for _, a := range u.Args() {
				u.Value(a).Layout = wgLayout
			}
			u.Value(u.Op(add).Results[0]).Layout = wgLayout
			return u, add
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, op := tt.build()
			if got := blocking.NeedsUnroll(u, op); got != tt.want {
				t.Fatalf("NeedsUnroll = %v, want %v\n%s", got, tt.want, u)
			}
		})
	}
}

func TestUnrolledTypes(t *testing.T) {
	types := ir.NewTypes()
	l := &layout.Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}
	desc := types.TensorDesc([]int64{32, 32}, ir.ElemF16, l)
	got := blocking.UnrolledTypes(types, desc, []int64{8, 16})
	if len(got) != 8 {
		t.Fatalf("got %d tiles, want 8", len(got))
	}
	if want := types.TensorDesc([]int64{8, 16}, ir.ElemF16, l.DropInstData()); got[0] != want {
		t.Fatalf("tile %s, want %s", types.MustLookup(got[0]), types.MustLookup(want))
	}
	converted, ok := blocking.TilingConverter().Convert(types, desc)
	if !ok || cmp.Diff(got, converted) != "" {
		t.Fatalf("converter and unroll disagree: %v vs %v", converted, got)
	}

	defer func() {
		if _, ok := recover().(*ir.InvariantError); !ok {
			t.Fatalf("expected an invariant panic for a non-dividing tile")
		}
	}()
	blocking.UnrolledTypes(types, types.Vector([]int64{30, 32}, ir.ElemF16), []int64{8, 16})
}

func TestTilingConverterWorkgroup(t *testing.T) {
	types := ir.NewTypes()
	conv := blocking.TilingConverter()
	tests := []struct {
		name  string
		l     *layout.Layout
		count int
		tile  []int64
	}{
		{name: "sg_data", l: &layout.Layout{SgLayout: []int64{2, 2}, SgData: []int64{16, 16}}, count: 4, tile: []int64{16, 16}},
		{name: "derived", l: &layout.Layout{SgLayout: []int64{4, 2}}, count: 1, tile: []int64{16, 32}},
		{name: "inst", l: &layout.Layout{InstData: []int64{8, 16}}, count: 8, tile: []int64{8, 16}},
		{name: "plain", l: nil, count: 1, tile: []int64{64, 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := types.Tensor([]int64{64, 64}, ir.ElemF32, tt.l)
			if tt.name == "inst" {
				in = types.Tensor([]int64{32, 32}, ir.ElemF32, tt.l)
			}
			out, ok := conv.Convert(types, in)
			if !ok || len(out) != tt.count {
				t.Fatalf("got %d tiles (ok=%v), want %d", len(out), ok, tt.count)
			}
			got := types.MustLookup(out[0])
			if got.Kind != ir.TypeVector {
				t.Fatalf("tensor tiles must be vectors, got %s", got)
			}
			if diff := cmp.Diff(tt.tile, got.Shape); diff != "" {
				t.Fatalf("tile (-want +got):\n%s", diff)
			}
		})
	}
}
