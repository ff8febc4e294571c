package diag

import "fmt"

// Loc points at an operation of a unit. Op is -1 for unit-level findings.
type Loc struct {
	Unit string
	Op   int32
	Kind string
}

// UnitLoc addresses a whole unit.
func UnitLoc(unit string) Loc {
	return Loc{Unit: unit, Op: -1}
}

func (l Loc) String() string {
	if l.Op < 0 {
		return "@" + l.Unit
	}
	if l.Kind == "" {
		return fmt.Sprintf("@%s:op%d", l.Unit, l.Op)
	}
	return fmt.Sprintf("@%s:op%d(%s)", l.Unit, l.Op, l.Kind)
}

type Note struct {
	Loc Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Loc
	Notes    []Note
}
