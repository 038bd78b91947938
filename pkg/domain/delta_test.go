package domain_test

import (
	"testing"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWithFlow(sessionID, flowID string) *domain.State {
	s := domain.NewState(sessionID)
	s.Stack = []domain.FlowInstance{{
		FlowID:   flowID,
		FlowName: "transfer",
		Status:   domain.StatusActive,
	}}
	s.Slots[flowID] = map[string]any{}
	return s
}

func TestDelta_IsZero(t *testing.T) {
	assert.True(t, domain.Delta{}.IsZero())
	assert.False(t, domain.Delta{ReplaceStack: true}.IsZero())
	assert.False(t, domain.Delta{}.WithSlot("f1", "amount", 50).IsZero())
	assert.False(t, domain.Delta{}.WithExecuted("f1", "s1").IsZero())
}

func TestMerge_LaterSlotWins(t *testing.T) {
	a := domain.Delta{}.WithSlot("f1", "amount", 50)
	b := domain.Delta{}.WithSlot("f1", "amount", 100)

	merged := domain.Merge(a, b)
	assert.Equal(t, 100, merged.Slots["f1"]["amount"])
}

func TestMerge_LaterStackWins(t *testing.T) {
	a := domain.Delta{ReplaceStack: true, Stack: []domain.FlowInstance{{FlowID: "f1"}}}
	b := domain.Delta{ReplaceStack: true, Stack: []domain.FlowInstance{}}

	merged := domain.Merge(a, b)
	assert.True(t, merged.ReplaceStack)
	assert.Empty(t, merged.Stack)

	// A zero b leaves a's replacement in force.
	merged = domain.Merge(a, domain.Delta{})
	assert.True(t, merged.ReplaceStack)
	assert.Len(t, merged.Stack, 1)
}

func TestMerge_ExecutedUnion(t *testing.T) {
	a := domain.Delta{}.WithExecuted("f1", "s1").WithExecuted("f1", "s2")
	b := domain.Delta{}.WithExecuted("f1", "s2").WithExecuted("f1", "s3")

	merged := domain.Merge(a, b)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, merged.Executed["f1"])
}

// Applying A then B must equal applying Merge(A, B) in one shot.
func TestMerge_Associativity(t *testing.T) {
	base := stateWithFlow("s1", "f1")

	a := domain.Delta{}.
		WithSlot("f1", "amount", 50).
		WithExecuted("f1", "check_balance")
	b := domain.Delta{
		ReplaceStack: true,
		Stack:        []domain.FlowInstance{},
	}.WithSlot("f1", "amount", 100).WithExecuted("f1", "say_done")

	sequential := domain.Apply(domain.Apply(base, a), b)
	merged := domain.Apply(base, domain.Merge(a, b))

	assert.Equal(t, sequential.Stack, merged.Stack)
	assert.Equal(t, sequential.Slots, merged.Slots)
	assert.Equal(t, sequential.Executed, merged.Executed)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	base := stateWithFlow("s1", "f1")
	base.Slots["f1"]["amount"] = 50

	next := domain.Apply(base, domain.Delta{}.WithSlot("f1", "amount", 100).WithExecuted("f1", "s1"))

	assert.Equal(t, 50, base.Slots["f1"]["amount"])
	assert.False(t, base.StepExecuted("f1", "s1"))
	assert.Equal(t, 100, next.Slots["f1"]["amount"])
	assert.True(t, next.StepExecuted("f1", "s1"))
}

func TestApply_NilSlotValueIsRetained(t *testing.T) {
	base := stateWithFlow("s1", "f1")
	next := domain.Apply(base, domain.Delta{}.WithSlot("f1", "amount", nil))

	value, ok := next.Slots["f1"]["amount"]
	require.True(t, ok, "nil is a valid stored value, distinct from absence")
	assert.Nil(t, value)
}

func TestWithSlot_DoesNotShareMaps(t *testing.T) {
	a := domain.Delta{}.WithSlot("f1", "amount", 50)
	b := a.WithSlot("f1", "recipient", "alice")

	assert.NotContains(t, a.Slots["f1"], "recipient")
	assert.Contains(t, b.Slots["f1"], "amount")
}
