package flows

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a flow name has no compiled graph.
var ErrNotFound = errors.New("flow not found")

// CompilationError reports an invalid flow definition. It is always
// fatal at compile time and can never surface at run time.
type CompilationError struct {
	Flow   string
	Step   string // offending step id, empty for flow-level problems
	Reason string
}

func (e *CompilationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("flow %q: %s", e.Flow, e.Reason)
	}
	return fmt.Sprintf("flow %q step %q: %s", e.Flow, e.Step, e.Reason)
}
