// Package xegpu holds the dialect-level helpers the blocking pass is built
// on: op builders, the layout lookup, the per-operand layout side table and
// the structural type conversion of loops and conditionals.
package xegpu

import (
	"strconv"
	"strings"

	"xeblock/internal/ir"
	"xeblock/internal/layout"
)

// Position selects the operand or result half of the side table.
type Position uint8

const (
	Operand Position = iota
	Result
)

const (
	operandPrefix = "layout_operand_"
	resultPrefix  = "layout_result_"
)

// LayoutName returns the side-table key for operand or result idx.
func LayoutName(pos Position, idx int) string {
	if pos == Operand {
		return operandPrefix + strconv.Itoa(idx)
	}
	return resultPrefix + strconv.Itoa(idx)
}

// IsLayoutName reports whether name is a side-table key.
func IsLayoutName(name string) bool {
	return strings.HasPrefix(name, operandPrefix) || strings.HasPrefix(name, resultPrefix)
}

// ParseLayoutName is the inverse of LayoutName.
func ParseLayoutName(name string) (Position, int, bool) {
	pos, rest := Operand, ""
	switch {
	case strings.HasPrefix(name, operandPrefix):
		rest = name[len(operandPrefix):]
	case strings.HasPrefix(name, resultPrefix):
		pos, rest = Result, name[len(resultPrefix):]
	default:
		return 0, 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, 0, false
	}
	return pos, idx, true
}

// LayoutOf finds the layout governing v. The lookup order is: a layout in
// the type (descriptors, encoded tensors), the descriptor of a load, the
// layout attached to the value, the defining op's side table, the encoded
// input of a single-input adapter, and for loop block arguments the tied
// init value. It returns nil when nothing applies.
func LayoutOf(u *ir.Unit, v ir.ValueID) *layout.Layout {
	if v == ir.NoValueID {
		return nil
	}
	t := u.TypeOf(v)
	if t.Kind == ir.TypeTensorDesc || (t.Kind == ir.TypeTensor && t.Layout != nil) {
		return t.Layout
	}
	val := u.Value(v)
	if val.IsResult() {
		o := u.Op(val.Def)
		if o.Kind == ir.KindLoadNd && len(o.Operands) > 0 {
			return LayoutOf(u, o.Operands[0])
		}
		if val.Layout != nil {
			return val.Layout
		}
		if l := o.Attrs.Layout(LayoutName(Result, val.ResultIdx)); l != nil {
			return l
		}
		if o.Kind == ir.KindGlue && len(o.Operands) == 1 {
			if in := u.TypeOf(o.Operands[0]); in.Kind == ir.TypeTensor {
				return in.Layout
			}
		}
		return nil
	}
	if val.Layout != nil {
		return val.Layout
	}
	if init := TiedInit(u, v); init != ir.NoValueID {
		return LayoutOf(u, init)
	}
	return nil
}

// TiedInit returns the init operand feeding loop block argument arg, or
// NoValueID. For while loops both regions' arguments tie to the init at the
// same position.
func TiedInit(u *ir.Unit, arg ir.ValueID) ir.ValueID {
	val := u.Value(arg)
	if val.IsResult() || val.Block == ir.NoBlockID {
		return ir.NoValueID
	}
	parent := u.BlockParentOp(val.Block)
	if parent == ir.NoOpID {
		return ir.NoValueID
	}
	o := u.Op(parent)
	switch o.Kind {
	case ir.KindFor:
		if val.ArgIdx == 0 {
			return ir.NoValueID
		}
		if i := ir.ForInitBase + val.ArgIdx - 1; i < len(o.Operands) {
			return o.Operands[i]
		}
	case ir.KindWhile:
		if val.ArgIdx < len(o.Operands) {
			return o.Operands[val.ArgIdx]
		}
	}
	return ir.NoValueID
}

// TiedArgs returns the region arguments a loop operand initialises.
func TiedArgs(u *ir.Unit, use ir.Use) []ir.ValueID {
	o := u.Op(use.Op)
	switch o.Kind {
	case ir.KindFor:
		if use.Index < ir.ForInitBase {
			return nil
		}
		body := u.Block(u.RegionEntry(o.Regions[0]))
		if i := use.Index - ir.ForInitBase + 1; i < len(body.Args) {
			return []ir.ValueID{body.Args[i]}
		}
	case ir.KindWhile:
		var out []ir.ValueID
		for _, r := range o.Regions {
			if args := u.Block(u.RegionEntry(r)).Args; use.Index < len(args) {
				out = append(out, args[use.Index])
			}
		}
		return out
	}
	return nil
}

// OperandLayout returns the layout of operand i of op, preferring the side
// table over the live value.
func OperandLayout(u *ir.Unit, op ir.OpID, i int) *layout.Layout {
	o := u.Op(op)
	if l := o.Attrs.Layout(LayoutName(Operand, i)); l != nil {
		return l
	}
	if i >= len(o.Operands) {
		return nil
	}
	return LayoutOf(u, o.Operands[i])
}

// ResultLayout returns the layout of result i of op.
func ResultLayout(u *ir.Unit, op ir.OpID, i int) *layout.Layout {
	return LayoutOf(u, u.Op(op).Results[i])
}

// SetLayoutAttrs snapshots, for every op, the layout of each operand and
// result into the side table. Existing entries are kept.
func SetLayoutAttrs(u *ir.Unit, lookup func(ir.ValueID) *layout.Layout) int {
	n := 0
	u.Walk(func(op ir.OpID) ir.WalkResult {
		o := u.Op(op)
		for i, v := range o.Operands {
			if setLayoutAttr(o, LayoutName(Operand, i), lookup(v)) {
				n++
			}
		}
		for i, r := range o.Results {
			if setLayoutAttr(o, LayoutName(Result, i), lookup(r)) {
				n++
			}
		}
		return ir.WalkAdvance
	})
	return n
}

func setLayoutAttr(o *ir.Op, name string, l *layout.Layout) bool {
	if l == nil || o.Attrs.Has(name) {
		return false
	}
	if o.Attrs == nil {
		o.Attrs = make(ir.Attrs)
	}
	o.Attrs[name] = ir.LayoutAttr{Layout: l}
	return true
}
