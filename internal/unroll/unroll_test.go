package unroll_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xeblock/internal/ir"
	"xeblock/internal/rewrite"
	"xeblock/internal/shape"
	"xeblock/internal/unroll"
)

var rowTile = []int64{16, 32}

func tiledOptions(filter func(*ir.Unit, ir.OpID) bool) unroll.Options {
	return unroll.Options{
		Filter: filter,
		NativeShape: func(u *ir.Unit, op ir.OpID) []int64 {
			t := u.TypeOf(u.Op(op).Results[0])
			if shape.Equal(t.Shape, rowTile) {
				return nil
			}
			return rowTile
		},
		UnrolledTypes: func(types *ir.Types, t ir.TypeID, tile []int64) []ir.TypeID {
			tt := types.MustLookup(t)
			ratio, ok := shape.Ratio(tt.Shape, tile)
			if !ok {
				return nil
			}
			out := make([]ir.TypeID, shape.Product(ratio))
			for i := range out {
				out[i] = types.WithShape(t, tile)
			}
			return out
		},
	}
}

func addUnit() (*ir.Unit, ir.OpID) {
	types := ir.NewTypes()
	vec := types.Vector([]int64{32, 32}, ir.ElemF32)
	u := ir.NewUnitWithTypes("add", types, vec, vec)
	b := u.AtEnd(u.Entry())
	add := b.Create(ir.KindAddF, u.Args(), []ir.TypeID{vec}, nil)
	b.Create(ir.KindReturn, u.Op(add).Results, nil, nil)
	return u, add
}

func TestElementwiseSplitsIntoTiles(t *testing.T) {
	u, _ := addUnit()
	stats, err := rewrite.ApplyGreedily(context.Background(), u, unroll.Patterns(tiledOptions(nil)), rewrite.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got := stats.Rewrites["unroll-elementwise"]; got != 1 {
		t.Fatalf("unroll-elementwise fired %d times, want 1", got)
	}
	if err := ir.Verify(u); err != nil {
		t.Fatal(err)
	}

	var adds, packs, unpacks int
	u.Walk(func(op ir.OpID) ir.WalkResult {
		o := u.Op(op)
		switch {
		case o.Kind == ir.KindAddF:
			adds++
			if diff := cmp.Diff(rowTile, u.TypeOf(o.Results[0]).Shape); diff != "" {
				t.Errorf("tile add shape (-want +got):\n%s", diff)
			}
		case o.Kind == ir.KindGlue && o.Attrs.Has(unroll.AttrPack):
			packs++
			if len(o.Results) != 2 {
				t.Errorf("pack yields %d tiles, want 2", len(o.Results))
			}
		case o.Kind == ir.KindGlue && o.Attrs.Has(unroll.AttrUnpack):
			unpacks++
			tile, ok := o.Attrs.Ints(unroll.AttrTileShape)
			if !ok {
				t.Errorf("unpack without %s", unroll.AttrTileShape)
			}
			if diff := cmp.Diff(rowTile, tile); diff != "" {
				t.Errorf("unpack tile (-want +got):\n%s", diff)
			}
		}
		return ir.WalkAdvance
	})
	if adds != 2 || packs != 2 || unpacks != 1 {
		t.Fatalf("adds=%d packs=%d unpacks=%d:\n%s", adds, packs, unpacks, u)
	}

	ret := u.Op(u.Terminator(u.Entry()))
	if def := u.Value(ret.Operands[0]).Def; !u.Op(def).Attrs.Has(unroll.AttrUnpack) {
		t.Fatalf("return does not read the unpacked value:\n%s", u)
	}
}

func TestFilterRejectsOp(t *testing.T) {
	u, add := addUnit()
	skip := func(_ *ir.Unit, op ir.OpID) bool { return op != add }
	stats, err := rewrite.ApplyGreedily(context.Background(), u, unroll.Patterns(tiledOptions(skip)), rewrite.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if n := stats.Total(); n != 0 {
		t.Fatalf("%d rewrites on a filtered unit", n)
	}
	if n := u.CountKind(ir.KindGlue); n != 0 {
		t.Fatalf("%d glue ops inserted:\n%s", n, u)
	}
}

func TestPackUnpackMarkers(t *testing.T) {
	types := ir.NewTypes()
	vec := types.Vector([]int64{32, 32}, ir.ElemF32)
	half := types.Vector(rowTile, ir.ElemF32)
	u := ir.NewUnitWithTypes("glue", types, vec)
	b := u.AtEnd(u.Entry())

	tile := []int64{16, 32}
	tiles := unroll.Pack(b, u.Args()[0], []ir.TypeID{half, half}, tile)
	back := unroll.Unpack(b, tiles, vec, rowTile)
	b.Create(ir.KindReturn, []ir.ValueID{back}, nil, nil)

	pack := u.Op(u.Value(tiles[0]).Def)
	unpack := u.Op(u.Value(back).Def)
	if !pack.Attrs.Has(unroll.AttrPack) || pack.Attrs.Has(unroll.AttrUnpack) {
		t.Fatalf("pack attrs %s", pack.Attrs)
	}
	if !unpack.Attrs.Has(unroll.AttrUnpack) || unpack.Attrs.Has(unroll.AttrPack) {
		t.Fatalf("unpack attrs %s", unpack.Attrs)
	}
	tile[0] = 99
	if got, _ := pack.Attrs.Ints(unroll.AttrTileShape); got[0] != 16 {
		t.Fatalf("pack aliases the caller's tile slice: %v", got)
	}
}
