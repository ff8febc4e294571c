// Package layout describes how an N-dimensional value is distributed across the
// workgroup → subgroup → lane hierarchy, and the instruction tile it should be
// blocked into.
//
// A Layout with SgLayout set is workgroup level: it still has to be split between
// subgroups by an earlier pass. Without SgLayout it is subgroup level, which is the
// level the blocking pass works at. InstData set means the value is not yet tiled
// down to instruction granularity.
package layout

import (
	"fmt"
	"strings"
)

// Layout is immutable by convention: the Drop* helpers return modified copies.
// A nil field means the field is absent.
type Layout struct {
	SgLayout   []int64 `msgpack:"sg_layout,omitempty"`
	SgData     []int64 `msgpack:"sg_data,omitempty"`
	InstData   []int64 `msgpack:"inst_data,omitempty"`
	LaneLayout []int64 `msgpack:"lane_layout,omitempty"`
	LaneData   []int64 `msgpack:"lane_data,omitempty"`
	Order      []int64 `msgpack:"order,omitempty"`
}

// IsWgLayout reports whether the layout still distributes across subgroups.
func (l *Layout) IsWgLayout() bool {
	return l != nil && l.SgLayout != nil
}

// IsSgLayout reports whether the layout is already subgroup local.
func (l *Layout) IsSgLayout() bool {
	return l != nil && l.SgLayout == nil
}

// HasInstTiling reports whether an instruction tile shape is attached.
func (l *Layout) HasInstTiling() bool {
	return l != nil && l.InstData != nil
}

// DropInstData clears InstData. It returns nil when nothing else remains.
func (l *Layout) DropInstData() *Layout {
	if l == nil {
		return nil
	}
	c := l.clone()
	c.InstData = nil
	return c.orNil()
}

// DropSgLayoutAndData clears the workgroup level fields.
func (l *Layout) DropSgLayoutAndData() *Layout {
	if l == nil {
		return nil
	}
	c := l.clone()
	c.SgLayout = nil
	c.SgData = nil
	return c.orNil()
}

// Equal compares two layouts field by field. Two nil layouts are equal.
func (l *Layout) Equal(o *Layout) bool {
	if l == nil || o == nil {
		return l == nil && o == nil
	}
	return eq(l.SgLayout, o.SgLayout) &&
		eq(l.SgData, o.SgData) &&
		eq(l.InstData, o.InstData) &&
		eq(l.LaneLayout, o.LaneLayout) &&
		eq(l.LaneData, o.LaneData) &&
		eq(l.Order, o.Order)
}

// Validate checks that all present fields agree on rank and hold positive entries.
func (l *Layout) Validate() error {
	if l == nil {
		return nil
	}
	rank := -1
	for _, f := range l.fields() {
		if f.vals == nil {
			continue
		}
		if len(f.vals) == 0 {
			return fmt.Errorf("layout: %s is empty", f.name)
		}
		if rank >= 0 && len(f.vals) != rank {
			return fmt.Errorf("layout: %s has rank %d, expected %d", f.name, len(f.vals), rank)
		}
		rank = len(f.vals)
		for i, v := range f.vals {
			if f.name == "order" {
				if v < 0 || int(v) >= len(f.vals) {
					return fmt.Errorf("layout: order[%d]=%d out of range", i, v)
				}
				continue
			}
			if v <= 0 {
				return fmt.Errorf("layout: %s[%d]=%d must be positive", f.name, i, v)
			}
		}
	}
	if l.SgData != nil && l.SgLayout == nil {
		return fmt.Errorf("layout: sg_data requires sg_layout")
	}
	return nil
}

// String renders the layout the way the IR printer shows attributes.
func (l *Layout) String() string {
	if l == nil {
		return "#layout<>"
	}
	var parts []string
	for _, f := range l.fields() {
		if f.vals == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", f.name, ints(f.vals)))
	}
	return "#layout<" + strings.Join(parts, ", ") + ">"
}

// Key is a compact identity string, used when layouts take part in type interning.
func (l *Layout) Key() string {
	if l == nil {
		return ""
	}
	return l.String()
}

type field struct {
	name string
	vals []int64
}

func (l *Layout) fields() []field {
	return []field{
		{"sg_layout", l.SgLayout},
		{"sg_data", l.SgData},
		{"inst_data", l.InstData},
		{"lane_layout", l.LaneLayout},
		{"lane_data", l.LaneData},
		{"order", l.Order},
	}
}

func (l *Layout) clone() *Layout {
	return &Layout{
		SgLayout:   cp(l.SgLayout),
		SgData:     cp(l.SgData),
		InstData:   cp(l.InstData),
		LaneLayout: cp(l.LaneLayout),
		LaneData:   cp(l.LaneData),
		Order:      cp(l.Order),
	}
}

func (l *Layout) orNil() *Layout {
	for _, f := range l.fields() {
		if f.vals != nil {
			return l
		}
	}
	return nil
}

func cp(s []int64) []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, len(s))
	copy(out, s)
	return out
}

func eq(a, b []int64) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ints(s []int64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteByte(']')
	return sb.String()
}
