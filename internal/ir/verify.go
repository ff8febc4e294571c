package ir

import (
	"errors"
	"fmt"
)

// Verify checks the structural invariants of u.
// Returns error if any invariant is violated.
func Verify(u *Unit) error {
	if u == nil {
		return nil
	}
	var errs []error

	// 1. Every live op sits in the block it claims and its operands are live.
	u.Walk(func(op OpID) WalkResult {
		if err := u.verifyOp(op); err != nil {
			errs = append(errs, err)
		}
		return WalkAdvance
	})

	// 2. Use lists mirror operand lists exactly.
	for i := range u.values {
		v := &u.values[i]
		if v.Retired {
			if len(v.uses) > 0 {
				errs = append(errs, fmt.Errorf("retired value %%%d still has %d uses", v.ID, len(v.uses)))
			}
			continue
		}
		for _, use := range v.uses {
			o := &u.ops[use.Op]
			if o.Erased {
				errs = append(errs, fmt.Errorf("%%%d used by erased op %d", v.ID, use.Op))
				continue
			}
			if use.Index >= len(o.Operands) || o.Operands[use.Index] != v.ID {
				errs = append(errs, fmt.Errorf("%%%d has stale use %+v", v.ID, use))
			}
		}
	}

	return errors.Join(errs...)
}

func (u *Unit) verifyOp(op OpID) error {
	o := &u.ops[op]
	var errs []error
	if o.Block == NoBlockID {
		errs = append(errs, fmt.Errorf("op %d (%s): detached but reachable", op, o.Kind))
	}
	if len(o.Regions) != o.Kind.NumRegions() {
		errs = append(errs, fmt.Errorf("op %d (%s): has %d regions, want %d", op, o.Kind, len(o.Regions), o.Kind.NumRegions()))
	}
	for i, v := range o.Operands {
		val := &u.values[v]
		if val.Retired {
			errs = append(errs, fmt.Errorf("op %d (%s): operand %d is retired value %%%d", op, o.Kind, i, v))
			continue
		}
		found := false
		for _, use := range val.uses {
			if use.Op == op && use.Index == i {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("op %d (%s): operand %d missing from use list of %%%d", op, o.Kind, i, v))
		}
	}
	for i, r := range o.Results {
		val := &u.values[r]
		if val.Def != op || val.ResultIdx != i {
			errs = append(errs, fmt.Errorf("op %d (%s): result %d back-reference broken", op, o.Kind, i))
		}
		if err := val.Layout.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("op %d (%s): result %d: %w", op, o.Kind, i, err))
		}
	}
	for _, k := range o.Attrs.Keys() {
		if err := o.Attrs.Layout(k).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("op %d (%s): attribute %s: %w", op, o.Kind, k, err))
		}
	}
	for _, r := range o.Regions {
		for _, b := range u.regions[r].Blocks {
			for i, a := range u.blocks[b].Args {
				if u.values[a].Block != b || u.values[a].ArgIdx != i {
					errs = append(errs, fmt.Errorf("op %d (%s): block argument %d back-reference broken", op, o.Kind, i))
				}
			}
		}
	}
	return errors.Join(errs...)
}
