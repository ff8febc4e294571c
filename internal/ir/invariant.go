package ir

import "fmt"

// InvariantError reports a broken structural assumption: a non-integral tile
// ratio, a value that must have a defining operation but has none. It is raised
// with panic and recovered once at the pass boundary; the unit must be
// discarded afterwards.
type InvariantError struct {
	Op  Kind
	Msg string
}

func (e *InvariantError) Error() string {
	if e.Op == KindInvalid {
		return "invariant violated: " + e.Msg
	}
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Msg)
}

// Invariantf panics with an *InvariantError.
func Invariantf(op Kind, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
