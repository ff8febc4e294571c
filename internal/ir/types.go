package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"xeblock/internal/layout"
	"xeblock/internal/shape"
)

type OpID int32
type ValueID int32
type BlockID int32
type RegionID int32
type TypeID int32

const (
	NoOpID     OpID     = -1
	NoValueID  ValueID  = -1
	NoBlockID  BlockID  = -1
	NoRegionID RegionID = -1
	NoTypeID   TypeID   = -1
)

// TypeKind enumerates the type families the blocking pipeline understands.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	// TypeIndex is the loop induction / offset type.
	TypeIndex
	// TypeScalar is a bare element type.
	TypeScalar
	// TypeVector is a register value; it never carries a layout encoding.
	TypeVector
	// TypeTensor is the canonical "bag of elements" container used while
	// structural conversion is in flight. It may carry a layout encoding.
	TypeTensor
	// TypeTensorDesc describes a block of memory; its layout is part of the type.
	TypeTensorDesc
	// TypeMemref is a source buffer.
	TypeMemref
)

// Elem is an element type.
type Elem uint8

const (
	ElemNone Elem = iota
	ElemI1
	ElemI8
	ElemI16
	ElemI32
	ElemI64
	ElemF16
	ElemBF16
	ElemF32
	ElemF64
)

var elemNames = [...]string{
	ElemNone: "none",
	ElemI1:   "i1",
	ElemI8:   "i8",
	ElemI16:  "i16",
	ElemI32:  "i32",
	ElemI64:  "i64",
	ElemF16:  "f16",
	ElemBF16: "bf16",
	ElemF32:  "f32",
	ElemF64:  "f64",
}

func (e Elem) String() string {
	if int(e) < len(elemNames) {
		return elemNames[e]
	}
	return "unknown"
}

// ParseElem is the inverse of Elem.String.
func ParseElem(s string) (Elem, error) {
	for i, n := range elemNames {
		if n == s {
			return Elem(i), nil
		}
	}
	return ElemNone, fmt.Errorf("unknown element type %q", s)
}

// Type is a structural type descriptor. Identity is decided by interning: two
// descriptors with the same String() share one TypeID.
type Type struct {
	Kind   TypeKind       `msgpack:"kind"`
	Elem   Elem           `msgpack:"elem"`
	Shape  []int64        `msgpack:"shape,omitempty"`
	Layout *layout.Layout `msgpack:"layout,omitempty"`

	// Descriptor-only fields.
	ArrayLength int64 `msgpack:"array_length,omitempty"`
	Scattered   bool  `msgpack:"scattered,omitempty"`
	ChunkSize   int64 `msgpack:"chunk_size,omitempty"`
}

// IsShaped reports whether the type has a static shape.
func (t Type) IsShaped() bool {
	switch t.Kind {
	case TypeVector, TypeTensor, TypeTensorDesc, TypeMemref:
		return true
	}
	return false
}

// Rank returns the number of dimensions, zero for non-shaped types.
func (t Type) Rank() int {
	return len(t.Shape)
}

// String renders the type in the textual IR syntax.
func (t Type) String() string {
	switch t.Kind {
	case TypeIndex:
		return "index"
	case TypeScalar:
		return t.Elem.String()
	case TypeVector:
		return fmt.Sprintf("vector<%sx%s>", shape.String(t.Shape), t.Elem)
	case TypeTensor:
		if t.Layout != nil {
			return fmt.Sprintf("tensor<%sx%s, %s>", shape.String(t.Shape), t.Elem, t.Layout)
		}
		return fmt.Sprintf("tensor<%sx%s>", shape.String(t.Shape), t.Elem)
	case TypeTensorDesc:
		var sb strings.Builder
		fmt.Fprintf(&sb, "!xegpu.tensor_desc<%sx%s", shape.String(t.Shape), t.Elem)
		if t.ArrayLength > 1 {
			fmt.Fprintf(&sb, ", array_length = %d", t.ArrayLength)
		}
		if t.Scattered {
			fmt.Fprintf(&sb, ", #scatter<chunk_size = %d>", t.ChunkSize)
		}
		if t.Layout != nil {
			sb.WriteString(", ")
			sb.WriteString(t.Layout.String())
		}
		sb.WriteString(">")
		return sb.String()
	case TypeMemref:
		return fmt.Sprintf("memref<%sx%s>", shape.String(t.Shape), t.Elem)
	}
	return "<invalid>"
}

// Types interns type descriptors for one unit.
type Types struct {
	types []Type
	index map[string]TypeID
}

// NewTypes returns an empty interner.
func NewTypes() *Types {
	return &Types{index: make(map[string]TypeID, 32)}
}

// Intern returns the stable id of a descriptor.
func (in *Types) Intern(t Type) TypeID {
	if t.Kind == TypeInvalid {
		return NoTypeID
	}
	key := t.String()
	if id, ok := in.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[int32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	t.Shape = shape.Clone(t.Shape)
	in.types = append(in.types, t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for id.
func (in *Types) Lookup(id TypeID) (Type, bool) {
	if id < 0 || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics on an invalid id.
func (in *Types) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("ir: invalid TypeID %d", id))
	}
	return t
}

// Len returns the number of interned types.
func (in *Types) Len() int { return len(in.types) }

func (in *Types) Index() TypeID { return in.Intern(Type{Kind: TypeIndex}) }

func (in *Types) Scalar(e Elem) TypeID { return in.Intern(Type{Kind: TypeScalar, Elem: e}) }

func (in *Types) Vector(s []int64, e Elem) TypeID {
	return in.Intern(Type{Kind: TypeVector, Elem: e, Shape: s})
}

func (in *Types) Tensor(s []int64, e Elem, l *layout.Layout) TypeID {
	return in.Intern(Type{Kind: TypeTensor, Elem: e, Shape: s, Layout: l})
}

func (in *Types) TensorDesc(s []int64, e Elem, l *layout.Layout) TypeID {
	return in.Intern(Type{Kind: TypeTensorDesc, Elem: e, Shape: s, Layout: l, ArrayLength: 1})
}

func (in *Types) Memref(s []int64, e Elem) TypeID {
	return in.Intern(Type{Kind: TypeMemref, Elem: e, Shape: s})
}

// WithShape clones a shaped type with a new shape and keeps everything else.
func (in *Types) WithShape(id TypeID, s []int64) TypeID {
	t := in.MustLookup(id)
	t.Shape = s
	return in.Intern(t)
}

// WithLayout clones a type with a new layout.
func (in *Types) WithLayout(id TypeID, l *layout.Layout) TypeID {
	t := in.MustLookup(id)
	t.Layout = l
	return in.Intern(t)
}
