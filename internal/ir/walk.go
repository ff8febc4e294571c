package ir

// WalkResult steers a walk.
type WalkResult uint8

const (
	WalkAdvance WalkResult = iota
	// WalkSkip does not descend into the regions of the current op (pre-order only).
	WalkSkip
	WalkInterrupt
)

// Walk visits every live operation in pre-order: an op before the contents of
// its regions. The block op lists are snapshotted, so fn may insert or erase.
func (u *Unit) Walk(fn func(OpID) WalkResult) bool {
	return u.walkRegion(u.Body, fn, true)
}

// WalkPost visits every live operation in post-order.
func (u *Unit) WalkPost(fn func(OpID) WalkResult) bool {
	return u.walkRegion(u.Body, fn, false)
}

// WalkRegion walks the operations nested in region r in pre-order.
func (u *Unit) WalkRegion(r RegionID, fn func(OpID) WalkResult) bool {
	return u.walkRegion(r, fn, true)
}

func (u *Unit) walkRegion(r RegionID, fn func(OpID) WalkResult, pre bool) bool {
	for _, b := range append([]BlockID(nil), u.regions[r].Blocks...) {
		for _, op := range append([]OpID(nil), u.blocks[b].Ops...) {
			if u.ops[op].Erased {
				continue
			}
			if pre {
				switch fn(op) {
				case WalkInterrupt:
					return false
				case WalkSkip:
					continue
				}
				if u.ops[op].Erased {
					continue
				}
			}
			for _, nr := range u.ops[op].Regions {
				if !u.walkRegion(nr, fn, pre) {
					return false
				}
			}
			if !pre && !u.ops[op].Erased {
				if fn(op) == WalkInterrupt {
					return false
				}
			}
		}
	}
	return true
}

// Ops returns the live operations in pre-order.
func (u *Unit) Ops() []OpID {
	var out []OpID
	u.Walk(func(op OpID) WalkResult {
		out = append(out, op)
		return WalkAdvance
	})
	return out
}

// OpsOfKind returns the live operations of kind k in pre-order.
func (u *Unit) OpsOfKind(k Kind) []OpID {
	var out []OpID
	u.Walk(func(op OpID) WalkResult {
		if u.ops[op].Kind == k {
			out = append(out, op)
		}
		return WalkAdvance
	})
	return out
}

// CountKind counts live operations of kind k.
func (u *Unit) CountKind(k Kind) int {
	return len(u.OpsOfKind(k))
}
