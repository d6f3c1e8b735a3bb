package ir

import (
	"fmt"

	"tlog.app/go/loc"
)

// InvariantError is a compiler bug, never a user error.
// It is raised with panic and aborts the whole compilation unit.
type InvariantError struct {
	Msg string
	PC  loc.PC
}

// Invariant panics with an *InvariantError pointing at its caller.
func Invariant(format string, args ...any) {
	panic(&InvariantError{
		Msg: fmt.Sprintf(format, args...),
		PC:  loc.Caller(1),
	})
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

func (e *InvariantError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%v (at %v)", e.Error(), e.PC)
		return
	}

	fmt.Fprint(s, e.Error())
}
