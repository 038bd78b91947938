package domain

import "fmt"

// Invariant names surfaced by StateConsistencyError.
const (
	InvariantSlotEntry     = "stack_flow_has_slot_entry"
	InvariantPendingStack  = "pending_implies_stack"
	InvariantPendingActive = "pending_belongs_to_active"
	InvariantStackStatus   = "stacked_instances_active"
)

// Validate checks the structural invariants of a state. The engine
// runs it on entry and again before persisting.
func Validate(s *State) error {
	for _, inst := range s.Stack {
		if _, ok := s.Slots[inst.FlowID]; !ok {
			return &StateConsistencyError{
				Invariant: InvariantSlotEntry,
				Detail:    fmt.Sprintf("flow %s (%s) has no slot table entry", inst.FlowID, inst.FlowName),
			}
		}
		if inst.Status != StatusActive {
			return &StateConsistencyError{
				Invariant: InvariantStackStatus,
				Detail:    fmt.Sprintf("stacked flow %s has status %q", inst.FlowID, inst.Status),
			}
		}
	}

	if s.Pending != nil {
		if len(s.Stack) == 0 {
			return &StateConsistencyError{
				Invariant: InvariantPendingStack,
				Detail:    "pending task exists but the stack is empty",
			}
		}
		if s.Pending.FlowID != "" && s.Pending.FlowID != s.ActiveFlowID() {
			return &StateConsistencyError{
				Invariant: InvariantPendingActive,
				Detail: fmt.Sprintf("pending task targets flow %s but active flow is %s",
					s.Pending.FlowID, s.ActiveFlowID()),
			}
		}
	}

	return nil
}
