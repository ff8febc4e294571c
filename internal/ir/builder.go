package ir

// Builder creates operations at an insertion point. Successive Create calls
// keep program order: each new op lands right after the previous one.
type Builder struct {
	u      *Unit
	block  BlockID
	before OpID // NoOpID inserts at the end of block
}

// AtEnd positions a builder at the end of b.
func (u *Unit) AtEnd(b BlockID) *Builder {
	return &Builder{u: u, block: b, before: NoOpID}
}

// AtStart positions a builder at the beginning of b.
func (u *Unit) AtStart(b BlockID) *Builder {
	before := NoOpID
	if ops := u.blocks[b].Ops; len(ops) > 0 {
		before = ops[0]
	}
	return &Builder{u: u, block: b, before: before}
}

// Before positions a builder right before op.
func (u *Unit) Before(op OpID) *Builder {
	return &Builder{u: u, block: u.ops[op].Block, before: op}
}

// After positions a builder right after op.
func (u *Unit) After(op OpID) *Builder {
	b := u.ops[op].Block
	ops := u.blocks[b].Ops
	idx := u.indexInBlock(op)
	before := NoOpID
	if idx+1 < len(ops) {
		before = ops[idx+1]
	}
	return &Builder{u: u, block: b, before: before}
}

// Unit returns the unit the builder writes into.
func (b *Builder) Unit() *Unit { return b.u }

// Block returns the insertion block.
func (b *Builder) Block() BlockID { return b.block }

// Insert attaches a detached op at the insertion point.
func (b *Builder) Insert(op OpID) OpID {
	pos := len(b.u.blocks[b.block].Ops)
	if b.before != NoOpID {
		pos = b.u.indexInBlock(b.before)
	}
	b.u.insertAt(b.block, pos, op)
	return op
}

// Create allocates and inserts an operation.
func (b *Builder) Create(kind Kind, operands []ValueID, resultTypes []TypeID, attrs Attrs) OpID {
	return b.Insert(b.u.NewOp(kind, operands, resultTypes, attrs))
}

// Glue inserts an adapter from inputs to results of the given types.
func (b *Builder) Glue(inputs []ValueID, resultTypes []TypeID, attrs Attrs) []ValueID {
	op := b.Create(KindGlue, inputs, resultTypes, attrs)
	return b.u.ops[op].Results
}
