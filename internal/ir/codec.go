package ir

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"xeblock/internal/layout"
)

// snapshotVersion guards the on-disk format.
const snapshotVersion = 1

type snapshot struct {
	Version uint16      `msgpack:"v"`
	Name    string      `msgpack:"name"`
	Types   []Type      `msgpack:"types"`
	Args    []snapValue `msgpack:"args"`
	Body    []snapOp    `msgpack:"body"`
}

type snapValue struct {
	Type   TypeID         `msgpack:"t"`
	Layout *layout.Layout `msgpack:"l,omitempty"`
}

type snapAttr struct {
	Kind   uint8          `msgpack:"k"`
	Ints   []int64        `msgpack:"i,omitempty"`
	Float  float64        `msgpack:"f,omitempty"`
	Int    int64          `msgpack:"n,omitempty"`
	Str    string         `msgpack:"s,omitempty"`
	Layout *layout.Layout `msgpack:"l,omitempty"`
}

const (
	attrInts uint8 = iota + 1
	attrFloat
	attrInt
	attrString
	attrUnit
	attrLayout
)

type snapBlock struct {
	Args []snapValue `msgpack:"args"`
	Ops  []snapOp    `msgpack:"ops"`
}

type snapOp struct {
	Kind     string              `msgpack:"kind"`
	Operands []int32             `msgpack:"operands"`
	Results  []snapValue         `msgpack:"results"`
	Attrs    map[string]snapAttr `msgpack:"attrs,omitempty"`
	Regions  [][]snapBlock       `msgpack:"regions,omitempty"`
}

// Encode writes u as a msgpack snapshot. Value references are renumbered in
// definition order, the same order Dump uses, and attribute maps are written
// in key order, so equal units encode to equal bytes.
func Encode(w io.Writer, u *Unit) error {
	enc := &encoder{u: u, ids: make(map[ValueID]int32)}
	s := snapshot{Version: snapshotVersion, Name: u.Name, Types: u.Types.types}
	for _, a := range u.Args() {
		s.Args = append(s.Args, enc.value(a))
	}
	for _, op := range u.blocks[u.Entry()].Ops {
		so, err := enc.op(op)
		if err != nil {
			return err
		}
		s.Body = append(s.Body, so)
	}
	e := msgpack.NewEncoder(w)
	e.SetSortMapKeys(true)
	return e.Encode(&s)
}

type encoder struct {
	u   *Unit
	ids map[ValueID]int32
}

func (e *encoder) value(v ValueID) snapValue {
	e.ids[v] = int32(len(e.ids))
	val := &e.u.values[v]
	return snapValue{Type: val.Type, Layout: val.Layout}
}

func (e *encoder) op(id OpID) (snapOp, error) {
	o := &e.u.ops[id]
	so := snapOp{Kind: o.Kind.String()}
	for _, v := range o.Operands {
		ref, ok := e.ids[v]
		if !ok {
			return snapOp{}, fmt.Errorf("encode: op %s uses undefined value %%%d", o.Kind, v)
		}
		so.Operands = append(so.Operands, ref)
	}
	for _, r := range o.Results {
		so.Results = append(so.Results, e.value(r))
	}
	if len(o.Attrs) > 0 {
		so.Attrs = make(map[string]snapAttr, len(o.Attrs))
		for k, a := range o.Attrs {
			sa, err := encodeAttr(a)
			if err != nil {
				return snapOp{}, fmt.Errorf("encode: %s attribute %s: %w", o.Kind, k, err)
			}
			so.Attrs[k] = sa
		}
	}
	for _, r := range o.Regions {
		var blocks []snapBlock
		for _, b := range e.u.regions[r].Blocks {
			var sb snapBlock
			for _, a := range e.u.blocks[b].Args {
				sb.Args = append(sb.Args, e.value(a))
			}
			for _, nested := range e.u.blocks[b].Ops {
				sn, err := e.op(nested)
				if err != nil {
					return snapOp{}, err
				}
				sb.Ops = append(sb.Ops, sn)
			}
			blocks = append(blocks, sb)
		}
		so.Regions = append(so.Regions, blocks)
	}
	return so, nil
}

func encodeAttr(a Attr) (snapAttr, error) {
	switch a := a.(type) {
	case IntsAttr:
		return snapAttr{Kind: attrInts, Ints: []int64(a)}, nil
	case FloatAttr:
		return snapAttr{Kind: attrFloat, Float: float64(a)}, nil
	case IntAttr:
		return snapAttr{Kind: attrInt, Int: int64(a)}, nil
	case StringAttr:
		return snapAttr{Kind: attrString, Str: string(a)}, nil
	case UnitAttr:
		return snapAttr{Kind: attrUnit}, nil
	case LayoutAttr:
		return snapAttr{Kind: attrLayout, Layout: a.Layout}, nil
	}
	return snapAttr{}, fmt.Errorf("unsupported attribute %T", a)
}

func decodeAttr(s snapAttr) (Attr, error) {
	switch s.Kind {
	case attrInts:
		return IntsAttr(s.Ints), nil
	case attrFloat:
		return FloatAttr(s.Float), nil
	case attrInt:
		return IntAttr(s.Int), nil
	case attrString:
		return StringAttr(s.Str), nil
	case attrUnit:
		return UnitAttr{}, nil
	case attrLayout:
		return LayoutAttr{Layout: s.Layout}, nil
	}
	return nil, fmt.Errorf("unknown attribute kind %d", s.Kind)
}

// Decode reads a unit written by Encode.
func Decode(r io.Reader) (*Unit, error) {
	var s snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("decode: unsupported snapshot version %d", s.Version)
	}
	types := NewTypes()
	for i, t := range s.Types {
		if id := types.Intern(t); int(id) != i {
			return nil, fmt.Errorf("decode: type table entry %d is a duplicate of %d", i, id)
		}
	}
	dec := &decoder{types: types}
	var argTypes []TypeID
	for _, a := range s.Args {
		if err := dec.checkType(a.Type); err != nil {
			return nil, err
		}
		argTypes = append(argTypes, a.Type)
	}
	u := NewUnitWithTypes(s.Name, types, argTypes...)
	dec.u = u
	for i, a := range u.Args() {
		u.values[a].Layout = s.Args[i].Layout
		dec.vals = append(dec.vals, a)
	}
	for _, so := range s.Body {
		if err := dec.op(u.AtEnd(u.Entry()), so); err != nil {
			return nil, err
		}
	}
	return u, nil
}

type decoder struct {
	u     *Unit
	types *Types
	vals  []ValueID
}

func (d *decoder) checkType(t TypeID) error {
	if _, ok := d.types.Lookup(t); !ok {
		return fmt.Errorf("decode: unknown type id %d", t)
	}
	return nil
}

func (d *decoder) op(b *Builder, so snapOp) error {
	kind, ok := ParseKind(so.Kind)
	if !ok {
		return fmt.Errorf("decode: unknown op kind %q", so.Kind)
	}
	operands := make([]ValueID, 0, len(so.Operands))
	for _, ref := range so.Operands {
		if ref < 0 || int(ref) >= len(d.vals) {
			return fmt.Errorf("decode: %s references undefined value %d", so.Kind, ref)
		}
		operands = append(operands, d.vals[ref])
	}
	resultTypes := make([]TypeID, 0, len(so.Results))
	for _, r := range so.Results {
		if err := d.checkType(r.Type); err != nil {
			return err
		}
		resultTypes = append(resultTypes, r.Type)
	}
	var attrs Attrs
	if len(so.Attrs) > 0 {
		attrs = make(Attrs, len(so.Attrs))
		for k, sa := range so.Attrs {
			a, err := decodeAttr(sa)
			if err != nil {
				return fmt.Errorf("decode: %s attribute %s: %w", so.Kind, k, err)
			}
			attrs[k] = a
		}
	}
	if len(so.Regions) != kind.NumRegions() {
		return errors.New("decode: region count mismatch for " + so.Kind)
	}
	op := b.Create(kind, operands, resultTypes, attrs)
	for i, r := range d.u.ops[op].Results {
		d.u.values[r].Layout = so.Results[i].Layout
		d.vals = append(d.vals, r)
	}
	for ri, blocks := range so.Regions {
		region := d.u.ops[op].Regions[ri]
		for _, sb := range blocks {
			blk := d.u.NewBlock(region)
			for _, a := range sb.Args {
				if err := d.checkType(a.Type); err != nil {
					return err
				}
				arg := d.u.AddBlockArg(blk, a.Type)
				d.u.values[arg].Layout = a.Layout
				d.vals = append(d.vals, arg)
			}
			for _, nested := range sb.Ops {
				if err := d.op(d.u.AtEnd(blk), nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
