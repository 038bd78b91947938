package runtime

import (
	"testing"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFlow(t *testing.T) {
	state := domain.NewState("s1")

	flowID, delta := PushFlow(state, "transfer", map[string]any{"amount": 50})
	require.NotEmpty(t, flowID)

	state = domain.Apply(state, delta)
	require.Len(t, state.Stack, 1)
	assert.Equal(t, "transfer", state.Stack[0].FlowName)
	assert.Equal(t, domain.StatusActive, state.Stack[0].Status)
	assert.Equal(t, 50, state.Slots[flowID]["amount"])
	assert.NoError(t, domain.Validate(state))
}

func TestPushFlow_GeneratesDistinctIDs(t *testing.T) {
	state := domain.NewState("s1")

	id1, delta := PushFlow(state, "transfer", nil)
	state = domain.Apply(state, delta)
	id2, delta := PushFlow(state, "transfer", nil)
	state = domain.Apply(state, delta)

	assert.NotEqual(t, id1, id2)
	assert.Len(t, state.Stack, 2)
}

func TestPopFlow(t *testing.T) {
	state := domain.NewState("s1")
	_, delta := PushFlow(state, "transfer", nil)
	state = domain.Apply(state, delta)

	popped, popDelta, err := PopFlow(state, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, popped.Status)

	state = domain.Apply(state, popDelta)
	assert.Empty(t, state.Stack)
	assert.Nil(t, state.Active())
}

func TestPopFlow_EmptyStack(t *testing.T) {
	_, _, err := PopFlow(domain.NewState("s1"), domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrEmptyStack)
}

func TestSlots_ScopedToActiveFlow(t *testing.T) {
	state := domain.NewState("s1")
	outerID, delta := PushFlow(state, "outer", nil)
	state = domain.Apply(state, delta)
	state = domain.Apply(state, SetSlot(state, "amount", 50))

	_, delta = PushFlow(state, "inner", nil)
	state = domain.Apply(state, delta)

	// The inner flow does not see the outer flow's slots.
	_, ok := GetSlot(state, "amount")
	assert.False(t, ok)
	assert.Empty(t, AllSlots(state))

	_, popDelta, err := PopFlow(state, domain.StatusCompleted)
	require.NoError(t, err)
	state = domain.Apply(state, popDelta)

	value, ok := GetSlot(state, "amount")
	require.True(t, ok)
	assert.Equal(t, 50, value)
	assert.Equal(t, 50, state.Slots[outerID]["amount"])
}

func TestSetSlot_IdleIsNoOp(t *testing.T) {
	state := domain.NewState("s1")
	assert.True(t, SetSlot(state, "amount", 50).IsZero())
}

func TestSetCurrentStep(t *testing.T) {
	state := domain.NewState("s1")
	_, delta := PushFlow(state, "transfer", nil)
	state = domain.Apply(state, delta)

	state = domain.Apply(state, SetCurrentStep(state, "ask_amount"))
	assert.Equal(t, "ask_amount", state.Active().CurrentStep)

	assert.True(t, SetCurrentStep(domain.NewState("s2"), "x").IsZero())
}
