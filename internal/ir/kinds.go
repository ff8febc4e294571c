package ir

// Kind enumerates operation kinds. The set is closed; per-kind behaviour is
// looked up in kindInfo rather than scattered through type switches.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindCreateNdDesc creates a block descriptor over a memref at static offsets.
	KindCreateNdDesc
	// KindUpdateNdOffset shifts a descriptor by static offsets.
	KindUpdateNdOffset
	// KindPrefetchNd prefetches the block described by a descriptor.
	KindPrefetchNd
	// KindLoadNd loads the block described by a descriptor into a vector.
	KindLoadNd
	// KindStoreNd stores a vector (operand 0) through a descriptor (operand 1).
	KindStoreNd
	// KindDpas is the matrix multiply-accumulate: A, B and optional C.
	KindDpas
	// KindConstant is a splat vector constant.
	KindConstant
	KindAddF
	KindSubF
	KindMulF
	KindMaxF
	KindAddI
	KindMulI
	// KindFor is a counted loop: lb, ub, step, inits... ; one body region.
	KindFor
	// KindWhile has a before region ending in KindCondition and an after region.
	KindWhile
	// KindIf has then and else regions.
	KindIf
	KindYield
	KindCondition
	KindReturn
	// KindGlue is a transient N-to-M adapter inserted at type boundaries.
	KindGlue
	// KindAssemble builds one aggregate from row-major tiles.
	KindAssemble
	// KindDecompose splits one aggregate into row-major tiles.
	KindDecompose
	// KindOpaque stands for any operation the pipeline does not know.
	KindOpaque
	kindCount
)

// Trait is a bit set of kind properties.
type Trait uint16

const (
	TraitLoopLike Trait = 1 << iota
	TraitElementwise
	TraitTerminator
	TraitPure
	TraitGlue
	TraitStructural
)

type kindDesc struct {
	name    string
	traits  Trait
	regions int
}

var kindInfo = [kindCount]kindDesc{
	KindInvalid:        {"<invalid>", 0, 0},
	KindCreateNdDesc:   {"xegpu.create_nd_tdesc", TraitPure, 0},
	KindUpdateNdOffset: {"xegpu.update_nd_offset", TraitPure, 0},
	KindPrefetchNd:     {"xegpu.prefetch_nd", 0, 0},
	KindLoadNd:         {"xegpu.load_nd", TraitPure, 0},
	KindStoreNd:        {"xegpu.store_nd", 0, 0},
	KindDpas:           {"xegpu.dpas", TraitPure, 0},
	KindConstant:       {"arith.constant", TraitPure | TraitElementwise, 0},
	KindAddF:           {"arith.addf", TraitPure | TraitElementwise, 0},
	KindSubF:           {"arith.subf", TraitPure | TraitElementwise, 0},
	KindMulF:           {"arith.mulf", TraitPure | TraitElementwise, 0},
	KindMaxF:           {"arith.maximumf", TraitPure | TraitElementwise, 0},
	KindAddI:           {"arith.addi", TraitPure | TraitElementwise, 0},
	KindMulI:           {"arith.muli", TraitPure | TraitElementwise, 0},
	KindFor:            {"scf.for", TraitLoopLike | TraitStructural, 1},
	KindWhile:          {"scf.while", TraitLoopLike | TraitStructural, 2},
	KindIf:             {"scf.if", TraitStructural, 2},
	KindYield:          {"scf.yield", TraitTerminator | TraitStructural, 0},
	KindCondition:      {"scf.condition", TraitTerminator | TraitStructural, 0},
	KindReturn:         {"func.return", TraitTerminator, 0},
	KindGlue:           {"builtin.unrealized_conversion_cast", TraitPure | TraitGlue, 0},
	KindAssemble:       {"tile.assemble", TraitPure, 0},
	KindDecompose:      {"tile.decompose", TraitPure, 0},
	KindOpaque:         {"opaque", 0, 0},
}

func (k Kind) String() string {
	if k < kindCount {
		return kindInfo[k].name
	}
	return "<unknown>"
}

// Has reports whether k carries all traits in t.
func (k Kind) Has(t Trait) bool {
	return k < kindCount && kindInfo[k].traits&t == t
}

// NumRegions is the fixed region count of the kind.
func (k Kind) NumRegions() int {
	if k < kindCount {
		return kindInfo[k].regions
	}
	return 0
}

// ParseKind maps a mnemonic back to its kind.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if kindInfo[k].name == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// ForInitBase is the operand index of the first iteration-carried init of KindFor.
const ForInitBase = 3

// AllKinds lists every valid kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
