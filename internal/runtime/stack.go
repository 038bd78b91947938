package runtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
)

// Flow stack operations. All of them take the current state and return
// a delta describing the mutation; callers apply the delta. Nothing
// here touches shared state, which is what makes additive merging and
// resumable persistence possible.

// PushFlow stacks a new instance of flowName and seeds its slot table.
func PushFlow(state *domain.State, flowName string, initialSlots map[string]any) (string, domain.Delta) {
	inst := domain.FlowInstance{
		FlowID:    uuid.NewString(),
		FlowName:  flowName,
		Status:    domain.StatusActive,
		StartedAt: time.Now().UTC(),
	}

	stack := append(append([]domain.FlowInstance(nil), state.Stack...), inst)

	slots := make(map[string]any, len(initialSlots))
	for k, v := range initialSlots {
		slots[k] = v
	}

	delta := domain.Delta{
		Stack:        stack,
		ReplaceStack: true,
		Slots:        map[string]map[string]any{inst.FlowID: slots},
	}
	return inst.FlowID, delta
}

// PopFlow removes the stack tail, marking its status with the given
// outcome before removal. Popping an empty stack returns
// domain.ErrEmptyStack and a zero delta.
func PopFlow(state *domain.State, outcome domain.FlowStatus) (domain.FlowInstance, domain.Delta, error) {
	if len(state.Stack) == 0 {
		return domain.FlowInstance{}, domain.Delta{}, domain.ErrEmptyStack
	}

	popped := state.Stack[len(state.Stack)-1]
	popped.Status = outcome

	stack := append([]domain.FlowInstance(nil), state.Stack[:len(state.Stack)-1]...)

	return popped, domain.Delta{Stack: stack, ReplaceStack: true}, nil
}

// SetSlot writes a slot on the active flow. With no active flow the
// delta is a no-op.
func SetSlot(state *domain.State, slot string, value any) domain.Delta {
	flowID := state.ActiveFlowID()
	if flowID == "" {
		return domain.Delta{}
	}
	return domain.Delta{}.WithSlot(flowID, slot, value)
}

// GetSlot reads a slot scoped to the active flow. The second return
// distinguishes a stored nil from absence.
func GetSlot(state *domain.State, slot string) (any, bool) {
	flowID := state.ActiveFlowID()
	if flowID == "" {
		return nil, false
	}
	value, ok := state.Slots[flowID][slot]
	return value, ok
}

// AllSlots returns a copy of the active flow's slot table, empty when
// idle.
func AllSlots(state *domain.State) map[string]any {
	flowID := state.ActiveFlowID()
	if flowID == "" {
		return map[string]any{}
	}
	out := make(map[string]any, len(state.Slots[flowID]))
	for k, v := range state.Slots[flowID] {
		out[k] = v
	}
	return out
}

// SetCurrentStep returns a delta moving the active instance to stepID.
func SetCurrentStep(state *domain.State, stepID string) domain.Delta {
	if len(state.Stack) == 0 {
		return domain.Delta{}
	}
	stack := append([]domain.FlowInstance(nil), state.Stack...)
	stack[len(stack)-1].CurrentStep = stepID
	return domain.Delta{Stack: stack, ReplaceStack: true}
}
