package ir

import (
	"fmt"

	"fortio.org/safecast"

	"xeblock/internal/layout"
)

// Use is one operand edge: operand Index of operation Op.
type Use struct {
	Op    OpID
	Index int
}

// Value is an operation result or a block argument.
type Value struct {
	ID   ValueID
	Type TypeID

	// Def/ResultIdx are set for results; Block/ArgIdx for block arguments.
	Def       OpID
	ResultIdx int
	Block     BlockID
	ArgIdx    int

	// Layout is the distribution layout attached to the value itself, as
	// opposed to one embedded in its type.
	Layout *layout.Layout

	// Retired values belong to erased operations or dropped arguments. They stay
	// readable so side-table lookups keyed on them keep working.
	Retired bool

	uses []Use
}

// IsResult reports whether the value is produced by an operation.
func (v *Value) IsResult() bool { return v.Def != NoOpID }

// Op is an operation node.
type Op struct {
	ID       OpID
	Kind     Kind
	Operands []ValueID
	Results  []ValueID
	Regions  []RegionID
	Attrs    Attrs
	Block    BlockID
	Erased   bool
}

// Block is an ordered list of operations with arguments.
type Block struct {
	ID     BlockID
	Region RegionID
	Args   []ValueID
	Ops    []OpID
}

// Region is a list of blocks owned by an operation. The unit body region has
// no owner.
type Region struct {
	ID     RegionID
	Op     OpID
	Blocks []BlockID
}

// Listener observes structural mutations. The greedy rewrite driver uses it to
// keep its worklist current.
type Listener interface {
	OpCreated(id OpID)
	OpErased(id OpID)
	OpModified(id OpID)
}

// Unit is one function-sized piece of IR. All nodes live in arenas and are
// referenced by integer handles; handles stay valid after erasure.
type Unit struct {
	Name  string
	Types *Types
	Body  RegionID

	ops     []Op
	values  []Value
	blocks  []Block
	regions []Region

	listener Listener
}

// NewUnit creates a unit whose body has one entry block with the given
// argument types.
func NewUnit(name string, argTypes ...TypeID) *Unit {
	return NewUnitWithTypes(name, NewTypes(), argTypes...)
}

// NewUnitWithTypes is NewUnit with a caller-provided interner.
func NewUnitWithTypes(name string, types *Types, argTypes ...TypeID) *Unit {
	u := &Unit{Name: name, Types: types}
	u.Body = u.NewRegion(NoOpID)
	entry := u.NewBlock(u.Body)
	for _, t := range argTypes {
		u.AddBlockArg(entry, t)
	}
	return u
}

// SetListener installs l and returns the previous listener.
func (u *Unit) SetListener(l Listener) Listener {
	prev := u.listener
	u.listener = l
	return prev
}

func (u *Unit) Op(id OpID) *Op             { return &u.ops[id] }
func (u *Unit) Value(id ValueID) *Value    { return &u.values[id] }
func (u *Unit) Block(id BlockID) *Block    { return &u.blocks[id] }
func (u *Unit) Region(id RegionID) *Region { return &u.regions[id] }

// NumOps returns the arena size, erased operations included.
func (u *Unit) NumOps() int { return len(u.ops) }

// Entry returns the entry block of the unit body.
func (u *Unit) Entry() BlockID { return u.regions[u.Body].Blocks[0] }

// Args returns the unit arguments.
func (u *Unit) Args() []ValueID { return u.blocks[u.Entry()].Args }

// TypeOf returns the type descriptor of v.
func (u *Unit) TypeOf(v ValueID) Type { return u.Types.MustLookup(u.values[v].Type) }

// ResultTypes returns the result type ids of op.
func (u *Unit) ResultTypes(op OpID) []TypeID {
	o := &u.ops[op]
	out := make([]TypeID, len(o.Results))
	for i, r := range o.Results {
		out[i] = u.values[r].Type
	}
	return out
}

// OperandTypes returns the operand type ids of op.
func (u *Unit) OperandTypes(op OpID) []TypeID {
	o := &u.ops[op]
	out := make([]TypeID, len(o.Operands))
	for i, v := range o.Operands {
		out[i] = u.values[v].Type
	}
	return out
}

// Uses returns a copy of v's use list.
func (u *Unit) Uses(v ValueID) []Use {
	uses := u.values[v].uses
	out := make([]Use, len(uses))
	copy(out, uses)
	return out
}

// HasUses reports whether v is referenced by any operand.
func (u *Unit) HasUses(v ValueID) bool { return len(u.values[v].uses) > 0 }

// ParentOp returns the operation owning the region that contains op, or
// NoOpID at the top level.
func (u *Unit) ParentOp(op OpID) OpID {
	b := u.ops[op].Block
	if b == NoBlockID {
		return NoOpID
	}
	return u.regions[u.blocks[b].Region].Op
}

// BlockParentOp returns the operation owning block b.
func (u *Unit) BlockParentOp(b BlockID) OpID {
	return u.regions[u.blocks[b].Region].Op
}

// Terminator returns the last operation of b when it is a terminator.
func (u *Unit) Terminator(b BlockID) OpID {
	ops := u.blocks[b].Ops
	if len(ops) == 0 {
		return NoOpID
	}
	last := ops[len(ops)-1]
	if u.ops[last].Kind.Has(TraitTerminator) {
		return last
	}
	return NoOpID
}

// RegionEntry returns the first block of region r.
func (u *Unit) RegionEntry(r RegionID) BlockID {
	return u.regions[r].Blocks[0]
}

func nextID(n int) int32 {
	id, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("ir: arena overflow: %w", err))
	}
	return id
}

// NewRegion allocates an empty region owned by op.
func (u *Unit) NewRegion(op OpID) RegionID {
	id := RegionID(nextID(len(u.regions)))
	u.regions = append(u.regions, Region{ID: id, Op: op})
	return id
}

// NewBlock appends an empty block to region r.
func (u *Unit) NewBlock(r RegionID) BlockID {
	id := BlockID(nextID(len(u.blocks)))
	u.blocks = append(u.blocks, Block{ID: id, Region: r})
	u.regions[r].Blocks = append(u.regions[r].Blocks, id)
	return id
}

// AddBlockArg appends an argument of type t to b.
func (u *Unit) AddBlockArg(b BlockID, t TypeID) ValueID {
	id := ValueID(nextID(len(u.values)))
	u.values = append(u.values, Value{
		ID:        id,
		Type:      t,
		Def:       NoOpID,
		ResultIdx: -1,
		Block:     b,
		ArgIdx:    len(u.blocks[b].Args),
	})
	u.blocks[b].Args = append(u.blocks[b].Args, id)
	return id
}

// SetBlockArgs replaces b's argument list. Dropped arguments must be unused;
// they are retired.
func (u *Unit) SetBlockArgs(b BlockID, args []ValueID) {
	keep := make(map[ValueID]bool, len(args))
	for _, a := range args {
		keep[a] = true
	}
	for _, old := range u.blocks[b].Args {
		if keep[old] {
			continue
		}
		if u.HasUses(old) {
			panic(fmt.Sprintf("ir: dropping block argument %%%d with live uses", old))
		}
		u.values[old].Retired = true
	}
	u.blocks[b].Args = append([]ValueID(nil), args...)
	for i, a := range args {
		u.values[a].Block = b
		u.values[a].ArgIdx = i
	}
}

// SetType changes the type of v in place.
func (u *Unit) SetType(v ValueID, t TypeID) {
	u.values[v].Type = t
	if def := u.values[v].Def; def != NoOpID {
		u.notifyModified(def)
	}
}

// NewOp allocates a detached operation with fresh results and empty regions.
func (u *Unit) NewOp(kind Kind, operands []ValueID, resultTypes []TypeID, attrs Attrs) OpID {
	id := OpID(nextID(len(u.ops)))
	u.ops = append(u.ops, Op{ID: id, Kind: kind, Attrs: attrs, Block: NoBlockID})
	for _, t := range resultTypes {
		vid := ValueID(nextID(len(u.values)))
		u.values = append(u.values, Value{
			ID:        vid,
			Type:      t,
			Def:       id,
			ResultIdx: len(u.ops[id].Results),
			Block:     NoBlockID,
			ArgIdx:    -1,
		})
		u.ops[id].Results = append(u.ops[id].Results, vid)
	}
	for i := 0; i < kind.NumRegions(); i++ {
		r := u.NewRegion(id)
		u.ops[id].Regions = append(u.ops[id].Regions, r)
	}
	u.SetOperands(id, operands)
	return id
}

// SetOperands replaces the whole operand list of op.
func (u *Unit) SetOperands(op OpID, operands []ValueID) {
	o := &u.ops[op]
	for i, v := range o.Operands {
		u.removeUse(v, Use{Op: op, Index: i})
	}
	o.Operands = append([]ValueID(nil), operands...)
	for i, v := range o.Operands {
		u.values[v].uses = append(u.values[v].uses, Use{Op: op, Index: i})
	}
	u.notifyModified(op)
}

// SetOperand replaces operand i of op.
func (u *Unit) SetOperand(op OpID, i int, v ValueID) {
	o := &u.ops[op]
	old := o.Operands[i]
	if old == v {
		return
	}
	u.removeUse(old, Use{Op: op, Index: i})
	o.Operands[i] = v
	u.values[v].uses = append(u.values[v].uses, Use{Op: op, Index: i})
	u.notifyModified(op)
}

func (u *Unit) removeUse(v ValueID, use Use) {
	uses := u.values[v].uses
	for i := range uses {
		if uses[i] == use {
			u.values[v].uses = append(uses[:i], uses[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("ir: use %+v missing from %%%d", use, v))
}

// ReplaceAllUsesWith relinks every use of old to repl.
func (u *Unit) ReplaceAllUsesWith(old, repl ValueID) {
	if old == repl {
		return
	}
	for _, use := range u.Uses(old) {
		u.SetOperand(use.Op, use.Index, repl)
	}
}

// ReplaceAllUsesExcept relinks every use of old except those owned by skip.
func (u *Unit) ReplaceAllUsesExcept(old, repl ValueID, skip OpID) {
	for _, use := range u.Uses(old) {
		if use.Op == skip {
			continue
		}
		u.SetOperand(use.Op, use.Index, repl)
	}
}

// ReplaceOp rewires every result of op to the matching value and erases op.
func (u *Unit) ReplaceOp(op OpID, values []ValueID) {
	results := u.ops[op].Results
	if len(results) != len(values) {
		panic(fmt.Sprintf("ir: replacing %s with %d values, op has %d results",
			u.ops[op].Kind, len(values), len(results)))
	}
	for i, r := range results {
		u.ReplaceAllUsesWith(r, values[i])
	}
	u.EraseOp(op)
}

// EraseOp detaches op, erases everything nested in its regions and retires
// its results. Results must be unused.
func (u *Unit) EraseOp(op OpID) {
	o := &u.ops[op]
	if o.Erased {
		return
	}
	for _, r := range o.Results {
		if u.HasUses(r) {
			panic(fmt.Sprintf("ir: erasing %s with live result %%%d", o.Kind, r))
		}
	}
	// Nested operations may use each other; drop all operand edges first.
	for _, r := range o.Regions {
		u.dropRegionReferences(r)
	}
	for _, r := range o.Regions {
		for _, b := range u.regions[r].Blocks {
			for _, nested := range append([]OpID(nil), u.blocks[b].Ops...) {
				u.eraseDropped(nested)
			}
			for _, a := range u.blocks[b].Args {
				u.values[a].Retired = true
			}
		}
	}
	u.SetOperands(op, nil)
	u.detach(op)
	u.markErased(op)
}

func (u *Unit) dropRegionReferences(r RegionID) {
	for _, b := range u.regions[r].Blocks {
		for _, op := range u.blocks[b].Ops {
			u.SetOperands(op, nil)
			for _, nr := range u.ops[op].Regions {
				u.dropRegionReferences(nr)
			}
		}
	}
}

func (u *Unit) eraseDropped(op OpID) {
	for _, r := range u.ops[op].Regions {
		for _, b := range u.regions[r].Blocks {
			for _, nested := range append([]OpID(nil), u.blocks[b].Ops...) {
				u.eraseDropped(nested)
			}
			for _, a := range u.blocks[b].Args {
				u.values[a].Retired = true
			}
		}
	}
	u.detach(op)
	u.markErased(op)
}

func (u *Unit) markErased(op OpID) {
	o := &u.ops[op]
	o.Erased = true
	for _, r := range o.Results {
		u.values[r].Retired = true
		u.values[r].uses = nil
	}
	if u.listener != nil {
		u.listener.OpErased(op)
	}
}

func (u *Unit) detach(op OpID) {
	b := u.ops[op].Block
	if b == NoBlockID {
		return
	}
	ops := u.blocks[b].Ops
	for i, id := range ops {
		if id == op {
			u.blocks[b].Ops = append(ops[:i:i], ops[i+1:]...)
			break
		}
	}
	u.ops[op].Block = NoBlockID
}

// indexInBlock returns the position of op in its block.
func (u *Unit) indexInBlock(op OpID) int {
	b := u.ops[op].Block
	for i, id := range u.blocks[b].Ops {
		if id == op {
			return i
		}
	}
	panic(fmt.Sprintf("ir: op %d not found in its block", op))
}

// insertAt places a detached op at position pos of block b.
func (u *Unit) insertAt(b BlockID, pos int, op OpID) {
	if u.ops[op].Block != NoBlockID {
		panic(fmt.Sprintf("ir: op %d is already attached", op))
	}
	ops := u.blocks[b].Ops
	ops = append(ops, NoOpID)
	copy(ops[pos+1:], ops[pos:])
	ops[pos] = op
	u.blocks[b].Ops = ops
	u.ops[op].Block = b
	if u.listener != nil {
		u.listener.OpCreated(op)
	}
}

// MoveRegionBlocks transfers every block of from into to, which must be empty.
func (u *Unit) MoveRegionBlocks(from, to RegionID) {
	if len(u.regions[to].Blocks) != 0 {
		panic("ir: moving blocks into a non-empty region")
	}
	u.regions[to].Blocks = u.regions[from].Blocks
	u.regions[from].Blocks = nil
	for _, b := range u.regions[to].Blocks {
		u.blocks[b].Region = to
	}
}

func (u *Unit) notifyModified(op OpID) {
	if u.listener != nil && !u.ops[op].Erased {
		u.listener.OpModified(op)
	}
}
