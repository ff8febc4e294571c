package rewrite_test

import (
	"context"
	"errors"
	"testing"

	"xeblock/internal/ir"
	"xeblock/internal/rewrite"
)

func vecUnit(t *testing.T) (*ir.Unit, ir.TypeID) {
	t.Helper()
	types := ir.NewTypes()
	vec := types.Vector([]int64{32, 32}, ir.ElemF32)
	return ir.NewUnitWithTypes("f", types, vec), vec
}

func TestFoldsGlueRoundTrip(t *testing.T) {
	u, vec := vecUnit(t)
	half := u.Types.Vector([]int64{16, 32}, ir.ElemF32)
	b := u.AtEnd(u.Entry())
	arg := u.Args()[0]
	tiles := b.Glue([]ir.ValueID{arg}, []ir.TypeID{half, half}, nil)
	back := b.Glue(tiles, []ir.TypeID{vec}, nil)
	add := b.Create(ir.KindAddF, []ir.ValueID{back[0], back[0]}, []ir.TypeID{vec}, nil)
	b.Create(ir.KindReturn, u.Op(add).Results, nil, nil)

	stats, err := rewrite.ApplyGreedily(context.Background(), u, nil, rewrite.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if n := u.CountKind(ir.KindGlue); n != 0 {
		t.Fatalf("%d glue ops left:\n%s", n, u)
	}
	if got := u.Op(add).Operands[0]; got != arg {
		t.Fatalf("add reads %%%d, want the argument %%%d", got, arg)
	}
	if stats.Folds != 1 || stats.Erased != 1 {
		t.Fatalf("stats = %s", stats)
	}
	if err := ir.Verify(u); err != nil {
		t.Fatal(err)
	}
}

func TestFoldsIdentityGlue(t *testing.T) {
	u, vec := vecUnit(t)
	b := u.AtEnd(u.Entry())
	same := b.Glue(u.Args(), []ir.TypeID{vec}, nil)
	b.Create(ir.KindReturn, same, nil, nil)

	if _, err := rewrite.ApplyGreedily(context.Background(), u, nil, rewrite.Config{}); err != nil {
		t.Fatal(err)
	}
	ret := u.Terminator(u.Entry())
	if got := u.Op(ret).Operands[0]; got != u.Args()[0] {
		t.Fatalf("return reads %%%d, want the argument", got)
	}
}

func TestKeepsMismatchedRoundTrip(t *testing.T) {
	u, _ := vecUnit(t)
	other := u.Types.Vector([]int64{32, 32}, ir.ElemF16)
	b := u.AtEnd(u.Entry())
	mid := b.Glue(u.Args(), []ir.TypeID{other}, nil)
	out := b.Glue(mid, []ir.TypeID{u.Types.Vector([]int64{1024}, ir.ElemF32)}, nil)
	b.Create(ir.KindReturn, out, nil, nil)

	if _, err := rewrite.ApplyGreedily(context.Background(), u, nil, rewrite.Config{}); err != nil {
		t.Fatal(err)
	}
	if n := u.CountKind(ir.KindGlue); n != 2 {
		t.Fatalf("round trip to a different type must not fold, %d glue left", n)
	}
}

func TestPatternAndDeadCode(t *testing.T) {
	u, vec := vecUnit(t)
	b := u.AtEnd(u.Entry())
	arg := u.Args()[0]
	b.Create(ir.KindConstant, nil, []ir.TypeID{vec}, ir.Attrs{"value": ir.FloatAttr(0)})
	mul := b.Create(ir.KindMulF, []ir.ValueID{arg, arg}, []ir.TypeID{vec}, nil)
	b.Create(ir.KindReturn, u.Op(mul).Results, nil, nil)

	double := rewrite.Pattern{
		Name:  "mul-self-to-add",
		Kinds: []ir.Kind{ir.KindMulF},
		Apply: func(rw *rewrite.Rewriter, op ir.OpID) bool {
			u := rw.Unit()
			o := u.Op(op)
			if o.Operands[0] != o.Operands[1] {
				return false
			}
			x := o.Operands[0]
			add := rw.Before(op).Create(ir.KindAddF, []ir.ValueID{x, x}, []ir.TypeID{u.Value(x).Type}, nil)
			rw.ReplaceOp(op, u.Op(add).Results)
			return true
		},
	}
	stats, err := rewrite.ApplyGreedily(context.Background(), u, []rewrite.Pattern{double}, rewrite.Config{MaxRewrites: 10})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rewrites["mul-self-to-add"] != 1 || stats.Erased != 1 {
		t.Fatalf("stats = %s", stats)
	}
	if u.CountKind(ir.KindConstant) != 0 || u.CountKind(ir.KindMulF) != 0 || u.CountKind(ir.KindAddF) != 1 {
		t.Fatalf("unexpected result:\n%s", u)
	}
	if stats.Iterations != 2 {
		t.Fatalf("want one changing sweep and one quiet sweep, got %d", stats.Iterations)
	}
}

func TestRewriteBudget(t *testing.T) {
	u, vec := vecUnit(t)
	b := u.AtEnd(u.Entry())
	arg := u.Args()[0]
	add := b.Create(ir.KindAddF, []ir.ValueID{arg, arg}, []ir.TypeID{vec}, nil)
	b.Create(ir.KindReturn, u.Op(add).Results, nil, nil)

	churn := rewrite.Pattern{
		Name:  "churn",
		Kinds: []ir.Kind{ir.KindAddF},
		Apply: func(rw *rewrite.Rewriter, op ir.OpID) bool {
			u := rw.Unit()
			operands := append([]ir.ValueID(nil), u.Op(op).Operands...)
			repl := rw.Before(op).Create(ir.KindAddF, operands, u.ResultTypes(op), nil)
			rw.ReplaceOp(op, u.Op(repl).Results)
			return true
		},
	}
	_, err := rewrite.ApplyGreedily(context.Background(), u, []rewrite.Pattern{churn}, rewrite.Config{MaxRewrites: 5})
	if !errors.Is(err, rewrite.ErrNoConvergence) {
		t.Fatalf("err = %v, want ErrNoConvergence", err)
	}
}

func TestCancelledContext(t *testing.T) {
	u, _ := vecUnit(t)
	u.AtEnd(u.Entry()).Create(ir.KindReturn, u.Args(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rewrite.ApplyGreedily(ctx, u, nil, rewrite.Config{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
