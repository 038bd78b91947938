package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyStack is returned by pop on an empty stack. The runtime
// recovers it locally (logged, treated as a no-op) since
// resume-after-already-popped is a legitimate race on replay.
var ErrEmptyStack = errors.New("flow stack is empty")

// ErrSessionNotFound is returned by checkpoint stores for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoMatchingCase is returned when a branch step matches no case and
// declares no default.
var ErrNoMatchingCase = errors.New("no matching branch case")

// StateConsistencyError reports a violated state invariant. It is fatal
// for the turn: the state must not be saved. Violations are reported,
// never silently repaired.
type StateConsistencyError struct {
	Invariant string
	Detail    string
}

func (e *StateConsistencyError) Error() string {
	return fmt.Sprintf("state invariant %q violated: %s", e.Invariant, e.Detail)
}

// ActionExecutionError wraps a failure from an integrator-supplied
// action handler.
type ActionExecutionError struct {
	Action string
	Err    error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Action, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// ValidationError wraps a failure from an integrator-supplied slot
// validator. It covers validator runtime failures, not rejections;
// a rejection simply re-prompts.
type ValidationError struct {
	Validator string
	Slot      string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q for slot %q failed: %v", e.Validator, e.Slot, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnderstandingProviderError wraps a classification failure. It is
// propagated, not swallowed: proceeding with zero commands could look
// like the user said nothing.
type UnderstandingProviderError struct {
	Err error
}

func (e *UnderstandingProviderError) Error() string {
	return fmt.Sprintf("understanding provider failed: %v", e.Err)
}

func (e *UnderstandingProviderError) Unwrap() error { return e.Err }
