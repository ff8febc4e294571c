package ir

import (
	"fmt"
	"sort"
	"strings"

	"xeblock/internal/layout"
)

// Attr is a constant attribute value stored in an operation's side table.
type Attr interface {
	String() string
}

// IntsAttr holds a dense integer array (offsets, strides).
type IntsAttr []int64

func (a IntsAttr) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FloatAttr holds a scalar floating point constant.
type FloatAttr float64

func (a FloatAttr) String() string { return fmt.Sprintf("%g", float64(a)) }

// IntAttr holds a scalar integer constant.
type IntAttr int64

func (a IntAttr) String() string { return fmt.Sprint(int64(a)) }

// StringAttr holds a string.
type StringAttr string

func (a StringAttr) String() string { return fmt.Sprintf("%q", string(a)) }

// UnitAttr is a presence marker.
type UnitAttr struct{}

func (UnitAttr) String() string { return "unit" }

// LayoutAttr wraps a distribution layout.
type LayoutAttr struct {
	Layout *layout.Layout
}

func (a LayoutAttr) String() string { return a.Layout.String() }

// Attrs maps attribute names to values.
type Attrs map[string]Attr

// Clone returns a shallow copy; attribute values are immutable.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns attribute names in sorted order.
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Layout returns the layout stored under name, or nil.
func (a Attrs) Layout(name string) *layout.Layout {
	if la, ok := a[name].(LayoutAttr); ok {
		return la.Layout
	}
	return nil
}

// Ints returns the integer array stored under name.
func (a Attrs) Ints(name string) ([]int64, bool) {
	v, ok := a[name].(IntsAttr)
	return []int64(v), ok
}

// Has reports presence of name.
func (a Attrs) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Attrs) String() string {
	if len(a) == 0 {
		return ""
	}
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, k+" = "+a[k].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
