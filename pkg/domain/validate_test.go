package domain_test

import (
	"testing"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_IdleStateIsValid(t *testing.T) {
	assert.NoError(t, domain.Validate(domain.NewState("s1")))
}

func TestValidate_ActiveFlowIsValid(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	assert.NoError(t, domain.Validate(s))
}

func TestValidate_MissingSlotEntry(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	delete(s.Slots, "f1")

	err := domain.Validate(s)
	var consistency *domain.StateConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, domain.InvariantSlotEntry, consistency.Invariant)
}

func TestValidate_StackedInstanceMustBeActive(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	s.Stack[0].Status = domain.StatusCompleted

	err := domain.Validate(s)
	var consistency *domain.StateConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, domain.InvariantStackStatus, consistency.Invariant)
}

func TestValidate_PendingRequiresStack(t *testing.T) {
	s := domain.NewState("s1")
	s.Pending = &domain.PendingTask{Kind: domain.TaskCollect, SlotName: "amount"}

	err := domain.Validate(s)
	var consistency *domain.StateConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, domain.InvariantPendingStack, consistency.Invariant)
}

func TestValidate_PendingMustBelongToActiveFlow(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	s.Pending = &domain.PendingTask{Kind: domain.TaskConfirm, FlowID: "f2"}

	err := domain.Validate(s)
	var consistency *domain.StateConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, domain.InvariantPendingActive, consistency.Invariant)
}

func TestClone_IsDeep(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	s.Slots["f1"]["amount"] = 50
	s.Executed["f1"] = map[string]bool{"s1": true}
	s.Pending = &domain.PendingTask{Kind: domain.TaskConfirm, Options: []string{"yes", "no"}}

	clone := s.Clone()
	clone.Slots["f1"]["amount"] = 100
	clone.Executed["f1"]["s2"] = true
	clone.Stack[0].CurrentStep = "elsewhere"
	clone.Pending.Options[0] = "ja"

	assert.Equal(t, 50, s.Slots["f1"]["amount"])
	assert.False(t, s.StepExecuted("f1", "s2"))
	assert.Empty(t, s.Stack[0].CurrentStep)
	assert.Equal(t, "yes", s.Pending.Options[0])
}

func TestClone_DeepCopiesNestedValues(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	s.Slots["f1"]["address"] = map[string]any{
		"city":  "Madrid",
		"lines": []any{"Calle Mayor 1"},
	}
	s.Slots["f1"]["tags"] = []any{"vip", map[string]any{"tier": "gold"}}

	clone := s.Clone()
	clone.Slots["f1"]["address"].(map[string]any)["city"] = "Barcelona"
	clone.Slots["f1"]["address"].(map[string]any)["lines"].([]any)[0] = "elsewhere"
	clone.Slots["f1"]["tags"].([]any)[0] = "blocked"
	clone.Slots["f1"]["tags"].([]any)[1].(map[string]any)["tier"] = "basic"

	address := s.Slots["f1"]["address"].(map[string]any)
	assert.Equal(t, "Madrid", address["city"])
	assert.Equal(t, "Calle Mayor 1", address["lines"].([]any)[0])
	tags := s.Slots["f1"]["tags"].([]any)
	assert.Equal(t, "vip", tags[0])
	assert.Equal(t, "gold", tags[1].(map[string]any)["tier"])
}

func TestApply_DetachesDeltaValues(t *testing.T) {
	s := stateWithFlow("s1", "f1")
	record := map[string]any{"city": "Madrid"}
	next := domain.Apply(s, domain.Delta{}.WithSlot("f1", "address", record))

	// An integrator mutating the value it handed in must not reach the
	// applied state.
	record["city"] = "Barcelona"
	assert.Equal(t, "Madrid", next.Slots["f1"]["address"].(map[string]any)["city"])
}
