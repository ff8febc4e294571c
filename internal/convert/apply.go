package convert

import (
	"context"
	"slices"

	"github.com/samber/lo"

	"xeblock/internal/ir"
	"xeblock/internal/trace"
)

// Target decides which operations must be converted. Structural control flow
// (for, while, if) is illegal while any of its operand, result or region
// argument types converts to something else; other kinds are legal unless a
// dynamic predicate says otherwise.
type Target struct {
	dynamic map[ir.Kind]func(u *ir.Unit, op ir.OpID) bool
}

// NewTarget returns a target with only the structural rules.
func NewTarget() *Target {
	return &Target{dynamic: make(map[ir.Kind]func(*ir.Unit, ir.OpID) bool)}
}

// AddDynamicallyLegal registers a legality predicate for kind k.
func (t *Target) AddDynamicallyLegal(k ir.Kind, legal func(u *ir.Unit, op ir.OpID) bool) {
	t.dynamic[k] = legal
}

// IsLegal reports whether op may stay as it is under conv.
func (t *Target) IsLegal(u *ir.Unit, conv *TypeConverter, op ir.OpID) bool {
	switch k := u.Op(op).Kind; k {
	case ir.KindFor, ir.KindWhile, ir.KindIf:
		return conv.allLegal(u.Types, structuralTypes(u, op))
	default:
		if fn := t.dynamic[k]; fn != nil {
			return fn(u, op)
		}
	}
	return true
}

func structuralTypes(u *ir.Unit, op ir.OpID) []ir.TypeID {
	ts := append(u.OperandTypes(op), u.ResultTypes(op)...)
	for _, r := range u.Op(op).Regions {
		for _, b := range u.Region(r).Blocks {
			ts = append(ts, typesOf(u, u.Block(b).Args)...)
		}
	}
	return ts
}

// Pattern converts one illegal non-structural operation.
type Pattern struct {
	Name    string
	Kind    ir.Kind
	Rewrite func(s *State, op ir.OpID) bool
}

// Options configures ApplyStructural.
type Options struct {
	Patterns []Pattern
	// Positional reports attribute names keyed by operand or result position.
	// A rebuilt op whose arity changes drops them.
	Positional func(name string) bool
}

// Stats counts what one conversion did.
type Stats struct {
	Rebuilt      int
	Patterns     int
	Materialized int
	Erased       int
}

// terminatorWants holds, per region of a rebuilt op, the converted types each
// terminator operand must take. The first skip operands are passed through.
type terminatorWants struct {
	skip  int
	wants [][]ir.TypeID
}

// State is the conversion bookkeeping shared with patterns.
type State struct {
	u      *ir.Unit
	conv   *TypeConverter
	opts   Options
	tracer trace.Tracer

	mapping map[ir.ValueID][]ir.ValueID
	want    map[ir.RegionID]terminatorWants
	owned   map[ir.OpID]bool
	stats   Stats
}

// Unit returns the unit under conversion.
func (s *State) Unit() *ir.Unit { return s.u }

// Lookup returns the values that currently stand for v.
func (s *State) Lookup(v ir.ValueID) []ir.ValueID {
	if vals, ok := s.mapping[v]; ok {
		return vals
	}
	return []ir.ValueID{v}
}

// Replace records per-result replacements for op. The op itself is erased
// at the end of the conversion once nothing uses it.
func (s *State) Replace(op ir.OpID, perResult [][]ir.ValueID) {
	for i, r := range s.u.Op(op).Results {
		s.mapping[r] = perResult[i]
	}
	s.owned[op] = true
}

// Discard marks op for erasure once its results are unused.
func (s *State) Discard(op ir.OpID) {
	s.owned[op] = true
}

// Remap returns the values standing for v, materialized to want at b when
// their types differ.
func (s *State) Remap(b *ir.Builder, v ir.ValueID, want []ir.TypeID) []ir.ValueID {
	vals := s.Lookup(v)
	if sameTypes(s.u, vals, want) {
		return vals
	}
	out := s.conv.Target(b, vals, want)
	s.own(out)
	return out
}

func (s *State) own(vals []ir.ValueID) {
	if len(vals) == 0 {
		return
	}
	if def := s.u.Value(vals[0]).Def; def != ir.NoOpID {
		s.owned[def] = true
		s.stats.Materialized++
	}
}

// ApplyStructural converts every illegal structured control-flow op of u and
// every illegal op a pattern handles. Ops are visited in a pre-order snapshot
// taken up front; terminators are rewritten after their parent.
func ApplyStructural(ctx context.Context, u *ir.Unit, conv *TypeConverter, target *Target, opts Options) (Stats, error) {
	s := &State{
		u:       u,
		conv:    conv,
		opts:    opts,
		tracer:  trace.FromContext(ctx),
		mapping: make(map[ir.ValueID][]ir.ValueID),
		want:    make(map[ir.RegionID]terminatorWants),
		owned:   make(map[ir.OpID]bool),
	}
	for _, op := range u.Ops() {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}
		if u.Op(op).Erased {
			continue
		}
		switch kind := u.Op(op).Kind; kind {
		case ir.KindYield, ir.KindCondition:
			s.convertTerminator(op)
		case ir.KindFor, ir.KindWhile, ir.KindIf:
			if target.IsLegal(u, conv, op) || !conv.convertible(u.Types, structuralTypes(u, op)) {
				continue
			}
			s.convertStructural(op)
		default:
			if target.IsLegal(u, conv, op) {
				continue
			}
			for i := range opts.Patterns {
				p := &opts.Patterns[i]
				if p.Kind == kind && p.Rewrite(s, op) {
					s.stats.Patterns++
					trace.Pointf(s.tracer, trace.ScopeOp, p.Name, "op %d", op)
					break
				}
			}
		}
	}
	s.eraseDead()
	return s.stats, nil
}

func (s *State) convertStructural(op ir.OpID) {
	u := s.u
	kind := u.Op(op).Kind
	regions := slices.Clone(u.Op(op).Regions)
	operands := slices.Clone(u.Op(op).Operands)
	b := u.Before(op)

	var newOperands []ir.ValueID
	var resultWants [][]ir.TypeID
	terms := make([]terminatorWants, len(regions))

	switch kind {
	case ir.KindFor:
		body := u.RegionEntry(regions[0])
		carried := u.Block(body).Args[1:]
		carryWants := s.wantsOf(carried)
		for _, v := range operands[:ir.ForInitBase] {
			newOperands = append(newOperands, s.Remap(b, v, s.convertType(u.Value(v).Type))...)
		}
		for i, v := range operands[ir.ForInitBase:] {
			newOperands = append(newOperands, s.Remap(b, v, carryWants[i])...)
		}
		resultWants = carryWants
		terms[0] = terminatorWants{wants: carryWants}

	case ir.KindWhile:
		before := u.RegionEntry(regions[0])
		after := u.RegionEntry(regions[1])
		carryWants := s.wantsOf(u.Block(before).Args)
		fwdWants := s.wantsOf(u.Block(after).Args)
		for i, v := range operands {
			newOperands = append(newOperands, s.Remap(b, v, carryWants[i])...)
		}
		resultWants = fwdWants
		terms[0] = terminatorWants{skip: 1, wants: fwdWants}
		terms[1] = terminatorWants{wants: carryWants}

	case ir.KindIf:
		for _, v := range operands {
			newOperands = append(newOperands, s.Remap(b, v, s.convertType(u.Value(v).Type))...)
		}
		resultWants = s.wantsOf(u.Op(op).Results)
		terms[0] = terminatorWants{wants: resultWants}
		terms[1] = terminatorWants{wants: resultWants}
	}

	newOp := s.rebuild(op, newOperands, lo.Flatten(resultWants))
	newRegions := slices.Clone(u.Op(newOp).Regions)
	for i, r := range newRegions {
		for _, blk := range slices.Clone(u.Region(r).Blocks) {
			s.convertBlock(blk)
		}
		s.want[r] = terms[i]
	}
	s.replaceResults(op, newOp, resultWants)
	s.stats.Rebuilt++
	trace.Pointf(s.tracer, trace.ScopeOp, "structural", "rebuilt %s op %d as %d", kind, op, newOp)
}

func (s *State) convertType(t ir.TypeID) []ir.TypeID {
	out, ok := s.conv.Convert(s.u.Types, t)
	if !ok {
		return []ir.TypeID{t}
	}
	return out
}

func (s *State) wantsOf(vals []ir.ValueID) [][]ir.TypeID {
	return lo.Map(vals, func(v ir.ValueID, _ int) []ir.TypeID {
		return s.convertType(s.u.Value(v).Type)
	})
}

// rebuild creates a copy of op with new operands and result types right
// before it and moves op's regions into the copy.
func (s *State) rebuild(op ir.OpID, operands []ir.ValueID, resultTypes []ir.TypeID) ir.OpID {
	u := s.u
	kind := u.Op(op).Kind
	regions := slices.Clone(u.Op(op).Regions)
	attrs := u.Op(op).Attrs.Clone()
	sameArity := len(operands) == len(u.Op(op).Operands) && len(resultTypes) == len(u.Op(op).Results)
	if !sameArity && s.opts.Positional != nil {
		for k := range attrs {
			if s.opts.Positional(k) {
				delete(attrs, k)
			}
		}
	}
	newOp := u.Before(op).Create(kind, operands, resultTypes, attrs)
	for i, r := range regions {
		u.MoveRegionBlocks(r, u.Op(newOp).Regions[i])
	}
	return newOp
}

// convertBlock applies the signature conversion to the arguments of blk.
// Old arguments that are still used get a source materialization at the top
// of the block.
func (s *State) convertBlock(blk ir.BlockID) {
	u := s.u
	type pending struct {
		old  ir.ValueID
		repl []ir.ValueID
	}
	var (
		newArgs []ir.ValueID
		todo    []pending
	)
	for _, a := range slices.Clone(u.Block(blk).Args) {
		t := u.Value(a).Type
		want := s.convertType(t)
		if len(want) == 1 && want[0] == t {
			newArgs = append(newArgs, a)
			continue
		}
		repl := make([]ir.ValueID, len(want))
		for i, wt := range want {
			repl[i] = u.AddBlockArg(blk, wt)
		}
		if len(want) == 1 {
			u.Value(repl[0]).Layout = u.Value(a).Layout
		}
		newArgs = append(newArgs, repl...)
		todo = append(todo, pending{old: a, repl: repl})
	}
	if len(todo) == 0 {
		return
	}
	bld := u.AtStart(blk)
	for _, p := range todo {
		s.mapping[p.old] = p.repl
		if !u.HasUses(p.old) {
			continue
		}
		src := s.conv.Source(bld, p.repl, []ir.TypeID{u.Value(p.old).Type})
		s.own(src)
		s.mapping[src[0]] = p.repl
		u.ReplaceAllUsesWith(p.old, src[0])
	}
	u.SetBlockArgs(blk, newArgs)
}

// replaceResults maps every result of old onto its slice of newOp's results,
// bridges remaining uses and erases old.
func (s *State) replaceResults(old, newOp ir.OpID, wants [][]ir.TypeID) {
	u := s.u
	oldResults := slices.Clone(u.Op(old).Results)
	newResults := slices.Clone(u.Op(newOp).Results)
	bld := u.After(newOp)
	idx := 0
	for i, r := range oldResults {
		repl := newResults[idx : idx+len(wants[i])]
		idx += len(wants[i])
		s.mapping[r] = repl
		t := u.Value(r).Type
		if len(repl) == 1 {
			u.Value(repl[0]).Layout = u.Value(r).Layout
		}
		if !u.HasUses(r) {
			continue
		}
		if len(repl) == 1 && u.Value(repl[0]).Type == t {
			u.ReplaceAllUsesWith(r, repl[0])
			continue
		}
		src := s.conv.Source(bld, repl, []ir.TypeID{t})
		s.own(src)
		s.mapping[src[0]] = repl
		u.ReplaceAllUsesWith(r, src[0])
	}
	u.EraseOp(old)
}

func (s *State) convertTerminator(op ir.OpID) {
	u := s.u
	region := u.Block(u.Op(op).Block).Region
	tw, ok := s.want[region]
	if !ok {
		return
	}
	operands := slices.Clone(u.Op(op).Operands)
	if len(operands)-tw.skip != len(tw.wants) {
		ir.Invariantf(u.Op(op).Kind, "terminator has %d operands, region expects %d", len(operands)-tw.skip, len(tw.wants))
	}
	b := u.Before(op)
	out := make([]ir.ValueID, 0, len(operands))
	for i, v := range operands {
		if i < tw.skip {
			out = append(out, v)
			continue
		}
		out = append(out, s.Remap(b, v, tw.wants[i-tw.skip])...)
	}
	u.SetOperands(op, out)
}

// eraseDead drops materializations and replaced ops nothing uses anymore.
func (s *State) eraseDead() {
	for {
		ids := lo.Keys(s.owned)
		slices.Sort(ids)
		erased := false
		for _, op := range ids {
			if s.u.Op(op).Erased {
				delete(s.owned, op)
				continue
			}
			if lo.SomeBy(s.u.Op(op).Results, s.u.HasUses) {
				continue
			}
			s.u.EraseOp(op)
			delete(s.owned, op)
			s.stats.Erased++
			erased = true
		}
		if !erased {
			return
		}
	}
}
