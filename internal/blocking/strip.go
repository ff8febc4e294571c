package blocking

import (
	"xeblock/internal/ir"
	"xeblock/internal/xegpu"
)

// StripSideTable removes every layout_operand_N / layout_result_N entry.
// A result whose entry had instData keeps the layout without it, attached to
// the value: the tiling is now explicit in the IR. Loop results are skipped.
// It returns the number of removed entries and of reattached layouts.
func StripSideTable(u *ir.Unit) (stripped, reattached int) {
	u.Walk(func(op ir.OpID) ir.WalkResult {
		o := u.Op(op)
		for _, name := range o.Attrs.Keys() {
			if !xegpu.IsLayoutName(name) {
				continue
			}
			l := o.Attrs.Layout(name)
			delete(o.Attrs, name)
			stripped++
			pos, idx, ok := xegpu.ParseLayoutName(name)
			if !ok || pos != xegpu.Result || idx >= len(o.Results) || o.Kind.Has(ir.TraitLoopLike) || !l.HasInstTiling() {
				continue
			}
			r := o.Results[idx]
			if u.TypeOf(r).Kind == ir.TypeTensorDesc {
				continue
			}
			if dropped := l.DropInstData(); dropped != nil {
				u.Value(r).Layout = dropped
				reattached++
			}
		}
		if len(o.Attrs) == 0 {
			o.Attrs = nil
		}
		return ir.WalkAdvance
	})
	return stripped, reattached
}
