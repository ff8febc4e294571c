// Package convert implements 1-to-N type conversion through structured
// control flow: loops with carried values, two-region while loops and
// conditionals.
package convert

import (
	"slices"

	"github.com/samber/lo"

	"xeblock/internal/ir"
)

// Result classifies the outcome of one conversion rule.
type Result uint8

const (
	// NotApplicable passes the type on to the next rule.
	NotApplicable Result = iota
	// Converted means the rule produced the replacement types.
	Converted
	// Failure marks the type as not convertible; ops touching it are left alone.
	Failure
)

// Rule converts one type into zero or more types.
type Rule func(types *ir.Types, t ir.TypeID) ([]ir.TypeID, Result)

// Materialize bridges values to the given types, inserting ops at b.
type Materialize func(b *ir.Builder, inputs []ir.ValueID, types []ir.TypeID) []ir.ValueID

// TypeConverter is an ordered rule list. Rules added later are consulted
// first; a type no rule handles converts to itself.
type TypeConverter struct {
	rules []Rule

	// Source bridges N converted values back to one original-typed value.
	Source Materialize
	// Target bridges values to the converted types an op expects.
	Target Materialize
}

// NewTypeConverter returns a converter whose materializations insert glue.
func NewTypeConverter() *TypeConverter {
	return &TypeConverter{Source: GlueMaterialize, Target: GlueMaterialize}
}

// GlueMaterialize inserts one unrealized conversion cast.
func GlueMaterialize(b *ir.Builder, inputs []ir.ValueID, types []ir.TypeID) []ir.ValueID {
	return b.Glue(inputs, types, nil)
}

// AddRule registers r ahead of the existing rules.
func (c *TypeConverter) AddRule(r Rule) {
	c.rules = append(c.rules, r)
}

// Convert returns the replacement types for t. ok is false when a rule
// reported Failure.
func (c *TypeConverter) Convert(types *ir.Types, t ir.TypeID) (out []ir.TypeID, ok bool) {
	for i := len(c.rules) - 1; i >= 0; i-- {
		res, r := c.rules[i](types, t)
		switch r {
		case Converted:
			return res, true
		case Failure:
			return nil, false
		}
	}
	return []ir.TypeID{t}, true
}

// IsLegal reports whether t converts to itself.
func (c *TypeConverter) IsLegal(types *ir.Types, t ir.TypeID) bool {
	out, ok := c.Convert(types, t)
	if !ok {
		// Unconvertible types are left in place and therefore count as legal.
		return true
	}
	return len(out) == 1 && out[0] == t
}

func (c *TypeConverter) allLegal(types *ir.Types, ts []ir.TypeID) bool {
	return lo.EveryBy(ts, func(t ir.TypeID) bool { return c.IsLegal(types, t) })
}

// convertible reports whether every type in ts has a conversion.
func (c *TypeConverter) convertible(types *ir.Types, ts []ir.TypeID) bool {
	for _, t := range ts {
		if _, ok := c.Convert(types, t); !ok {
			return false
		}
	}
	return true
}

func typesOf(u *ir.Unit, vals []ir.ValueID) []ir.TypeID {
	out := make([]ir.TypeID, len(vals))
	for i, v := range vals {
		out[i] = u.Value(v).Type
	}
	return out
}

func sameTypes(u *ir.Unit, vals []ir.ValueID, want []ir.TypeID) bool {
	return slices.Equal(typesOf(u, vals), want)
}
