package domain

import "time"

// FlowStatus describes the lifecycle stage of a flow instance.
type FlowStatus string

const (
	StatusActive    FlowStatus = "active"
	StatusCompleted FlowStatus = "completed"
	StatusCancelled FlowStatus = "cancelled"
)

// FlowInstance is one live activation of a flow definition on the stack.
type FlowInstance struct {
	// FlowID uniquely identifies this activation. Generated at push time.
	FlowID string `json:"flow_id"`

	// FlowName references a compiled flow definition.
	FlowName string `json:"flow_name"`

	// Status is active while the instance sits on the stack; it is set
	// to completed or cancelled just before the instance is popped.
	Status FlowStatus `json:"status"`

	// CurrentStep is the id of the step the instance is at, empty before
	// the first step executes.
	CurrentStep string `json:"current_step,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// State is the full snapshot of one conversation session. The tail of
// Stack is the active (innermost) flow; an empty stack means idle.
type State struct {
	SessionID string `json:"session_id"`

	// Stack is only ever mutated by pushing onto or popping from the
	// tail. No random insertion or removal.
	Stack []FlowInstance `json:"stack"`

	// Slots maps flow id to slot name to value. A nil value is a valid
	// "unset" sentinel distinct from absence. Entries for popped flows
	// are retained for audit but are no longer addressable through the
	// active-context accessors.
	Slots map[string]map[string]any `json:"slots"`

	// Executed records, per flow id, the step ids whose side effects
	// have already fired. A step is added in the same update that
	// applies its effect, so replaying the graph never re-runs it.
	Executed map[string]map[string]bool `json:"executed"`

	// Pending is the suspension marker. At most one exists at the end
	// of any turn; its presence is the sole signal that the turn must
	// pause for external input.
	Pending *PendingTask `json:"pending,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates an empty (idle) state for a session.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Stack:     []FlowInstance{},
		Slots:     make(map[string]map[string]any),
		Executed:  make(map[string]map[string]bool),
	}
}

// Active returns the stack tail, or nil if the stack is empty.
func (s *State) Active() *FlowInstance {
	if len(s.Stack) == 0 {
		return nil
	}
	return &s.Stack[len(s.Stack)-1]
}

// ActiveFlowID returns the flow id of the active instance, or "".
func (s *State) ActiveFlowID() string {
	if inst := s.Active(); inst != nil {
		return inst.FlowID
	}
	return ""
}

// StepExecuted reports whether the step already fired for the flow.
func (s *State) StepExecuted(flowID, stepID string) bool {
	return s.Executed[flowID][stepID]
}

// Clone returns a deep copy safe for independent mutation.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Stack = make([]FlowInstance, len(s.Stack))
	copy(next.Stack, s.Stack)
	next.Slots = make(map[string]map[string]any, len(s.Slots))
	for id, slots := range s.Slots {
		inner := make(map[string]any, len(slots))
		for k, v := range slots {
			inner[k] = copyValue(v)
		}
		next.Slots[id] = inner
	}
	next.Executed = make(map[string]map[string]bool, len(s.Executed))
	for id, steps := range s.Executed {
		inner := make(map[string]bool, len(steps))
		for k := range steps {
			inner[k] = true
		}
		next.Executed[id] = inner
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Options = append([]string(nil), s.Pending.Options...)
		next.Pending = &p
	}
	return &next
}

// copyValue deep-copies the JSON-shaped values a slot may hold. Slot
// values can be nested records and lists, not just scalars, and those
// must not alias across a Clone.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
