package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable rendering of u. Values and blocks are numbered
// in print order, so two structurally identical units print identically no
// matter how their arenas were filled.
func Dump(w io.Writer, u *Unit) error {
	if w == nil || u == nil {
		return nil
	}
	p := &printer{u: u, w: w, names: make(map[ValueID]string), blocks: make(map[BlockID]string)}
	entry := u.Entry()
	args := make([]string, 0, len(u.blocks[entry].Args))
	for _, a := range u.blocks[entry].Args {
		args = append(args, p.define(a)+": "+p.typ(a))
	}
	fmt.Fprintf(w, "unit @%s(%s) {\n", u.Name, strings.Join(args, ", "))
	for _, op := range u.blocks[entry].Ops {
		p.op(op, 1)
	}
	fmt.Fprintln(w, "}")
	return p.err
}

// String renders u with Dump.
func (u *Unit) String() string {
	var sb strings.Builder
	_ = Dump(&sb, u)
	return sb.String()
}

type printer struct {
	u      *Unit
	w      io.Writer
	names  map[ValueID]string
	blocks map[BlockID]string
	next   int
	nextBB int
	err    error
}

func (p *printer) define(v ValueID) string {
	name := fmt.Sprintf("%%%d", p.next)
	p.next++
	p.names[v] = name
	return name
}

func (p *printer) ref(v ValueID) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	return fmt.Sprintf("%%<undef:%d>", v)
}

func (p *printer) typ(v ValueID) string {
	return p.u.TypeOf(v).String()
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (p *printer) op(id OpID, depth int) {
	o := &p.u.ops[id]
	var sb strings.Builder

	operands := make([]string, len(o.Operands))
	operandTypes := make([]string, len(o.Operands))
	for i, v := range o.Operands {
		operands[i] = p.ref(v)
		operandTypes[i] = p.typ(v)
	}
	results := make([]string, len(o.Results))
	resultTypes := make([]string, len(o.Results))
	for i, r := range o.Results {
		results[i] = p.define(r)
		resultTypes[i] = p.typ(r)
	}

	if len(results) > 0 {
		sb.WriteString(strings.Join(results, ", "))
		sb.WriteString(" = ")
	}
	fmt.Fprintf(&sb, "%s(%s)", o.Kind, strings.Join(operands, ", "))
	if attrs := o.Attrs.String(); attrs != "" {
		sb.WriteString(" ")
		sb.WriteString(attrs)
	}
	fmt.Fprintf(&sb, " : (%s) -> (%s)", strings.Join(operandTypes, ", "), strings.Join(resultTypes, ", "))

	var attached []string
	for i, r := range o.Results {
		if l := p.u.values[r].Layout; l != nil {
			attached = append(attached, fmt.Sprintf("%d: %s", i, l))
		}
	}
	if len(attached) > 0 {
		fmt.Fprintf(&sb, " attached{%s}", strings.Join(attached, ", "))
	}

	if len(o.Regions) == 0 {
		p.line(depth, "%s", sb.String())
		return
	}
	p.line(depth, "%s {", sb.String())
	for ri, r := range o.Regions {
		if ri > 0 {
			p.line(depth, "} {")
		}
		for _, b := range p.u.regions[r].Blocks {
			p.block(b, depth+1)
		}
	}
	p.line(depth, "}")
}

func (p *printer) block(b BlockID, depth int) {
	label := fmt.Sprintf("^bb%d", p.nextBB)
	p.nextBB++
	p.blocks[b] = label
	args := make([]string, 0, len(p.u.blocks[b].Args))
	for _, a := range p.u.blocks[b].Args {
		var attached string
		if l := p.u.values[a].Layout; l != nil {
			attached = " " + l.String()
		}
		args = append(args, p.define(a)+": "+p.typ(a)+attached)
	}
	p.line(depth-1, "%s(%s):", label, strings.Join(args, ", "))
	for _, op := range p.u.blocks[b].Ops {
		p.op(op, depth)
	}
}
