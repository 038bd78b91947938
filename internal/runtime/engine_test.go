package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/jmorenobl/soni-sub003/internal/logging"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
	"github.com/jmorenobl/soni-sub003/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinitions() flows.Definitions {
	return flows.Definitions{
		"greet": {
			{Step: "intro", Type: "say", Message: "Welcome!"},
			{Step: "ask_name", Type: "collect", Slot: "name", Message: "What's your name?",
				Explanation: "I use it to address you."},
			{Step: "hello", Type: "say", Message: "Hello, {name}!"},
		},
		"transfer": {
			{Step: "ask_amount", Type: "collect", Slot: "amount", Message: "How much?"},
			{Step: "ask_recipient", Type: "collect", Slot: "recipient", Message: "To whom?"},
			{Step: "confirm_transfer", Type: "confirm", Message: "Send {amount} to {recipient}?"},
			{Step: "do_transfer", Type: "action", Call: "execute_transfer",
				MapOutputs: map[string]string{"reference": "transfer_ref"}},
			{Step: "say_done", Type: "say", Message: "Done! Reference: {transfer_ref}"},
		},
		"balance": {
			{Step: "fetch", Type: "action", Call: "get_balance",
				MapOutputs: map[string]string{"balance": "balance"}},
			{Step: "tell", Type: "say", Message: "Your balance is {balance}."},
		},
		"outer": {
			{Step: "before", Type: "say", Message: "Starting outer."},
			{Step: "do_inner", Type: "call", Target: "inner"},
			{Step: "after", Type: "say", Message: "Back in outer."},
		},
		"inner": {
			{Step: "inside", Type: "say", Message: "Inside inner."},
		},
	}
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *int) {
	t.Helper()

	set, err := flows.CompileAll(testDefinitions())
	require.NoError(t, err)

	transfers := 0
	actions := registry.NewActions()
	actions.Register("execute_transfer", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		transfers++
		return map[string]any{"reference": "TX-001"}, nil
	})
	actions.Register("get_balance", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"balance": 100}, nil
	})

	return NewEngine(set, actions, registry.NewValidators(), opts...), &transfers
}

func runTurn(t *testing.T, e *Engine, state *domain.State, cmds ...domain.Command) *TurnResult {
	t.Helper()
	result, err := e.RunTurn(context.Background(), state, cmds)
	require.NoError(t, err)
	return result
}

func TestRunTurn_CollectSuspendsAndResumes(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "greet"})
	assert.Equal(t, []string{"Welcome!", "What's your name?"}, r1.Replies)
	require.NotNil(t, r1.Pending)
	assert.Equal(t, domain.TaskCollect, r1.Pending.Kind)
	assert.Equal(t, "name", r1.Pending.SlotName)

	r2 := runTurn(t, e, r1.State, domain.SetSlot{Slot: "name", Value: "Ada"})
	assert.Equal(t, []string{"Hello, Ada!"}, r2.Replies)
	assert.Nil(t, r2.Pending)
	assert.Empty(t, r2.State.Stack)
}

// Resuming re-walks the graph from the top of the active flow, so
// already-fired say steps must not produce output twice.
func TestRunTurn_ResumptionIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "greet"})
	assert.Contains(t, r1.Replies, "Welcome!")

	r2 := runTurn(t, e, r1.State, domain.SetSlot{Slot: "name", Value: "Ada"})
	assert.NotContains(t, r2.Replies, "Welcome!")
	assert.NotContains(t, r2.Replies, "What's your name?")
}

func TestRunTurn_InitialSlotsSkipCollection(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r := runTurn(t, e, state, domain.StartFlow{
		Flow:  "greet",
		Slots: map[string]any{"name": "Ada"},
	})
	assert.Equal(t, []string{"Welcome!", "Hello, Ada!"}, r.Replies)
	assert.Nil(t, r.Pending)
}

func TestRunTurn_DigressionAutoResumesParent(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "transfer"})
	r2 := runTurn(t, e, r1.State, domain.SetSlot{Slot: "amount", Value: 50})
	require.NotNil(t, r2.Pending)
	require.Equal(t, "recipient", r2.Pending.SlotName)

	// A digression stacks a second flow. It runs to completion, then
	// the suspended parent re-issues its prompt, in that order.
	r3 := runTurn(t, e, r2.State, domain.StartFlow{Flow: "balance"})
	assert.Equal(t, []string{"Your balance is 100.", "To whom?"}, r3.Replies)
	require.NotNil(t, r3.Pending)
	assert.Equal(t, "recipient", r3.Pending.SlotName)
	require.Len(t, r3.State.Stack, 1)
	assert.Equal(t, "transfer", r3.State.Stack[0].FlowName)
}

func TestRunTurn_ConfirmAffirm(t *testing.T) {
	e, transfers := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{
		Flow:  "transfer",
		Slots: map[string]any{"amount": 50, "recipient": "bob"},
	})
	require.NotNil(t, r1.Pending)
	assert.Equal(t, domain.TaskConfirm, r1.Pending.Kind)
	assert.Contains(t, r1.Replies, "Send 50 to bob?")
	assert.Equal(t, []string{"yes", "no"}, r1.Pending.Options)
	assert.Zero(t, *transfers)

	r2 := runTurn(t, e, r1.State, domain.Affirm{})
	assert.Equal(t, []string{"Done! Reference: TX-001"}, r2.Replies)
	assert.Nil(t, r2.Pending)
	assert.Equal(t, 1, *transfers)
}

func TestRunTurn_ConfirmDenyReroutesToCollect(t *testing.T) {
	e, transfers := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{
		Flow:  "transfer",
		Slots: map[string]any{"amount": 50, "recipient": "bob"},
	})
	require.NotNil(t, r1.Pending)

	r2 := runTurn(t, e, r1.State, domain.Deny{SlotToChange: "amount"})
	assert.Equal(t, []string{"How much?"}, r2.Replies)
	require.NotNil(t, r2.Pending)
	assert.Equal(t, "amount", r2.Pending.SlotName)

	r3 := runTurn(t, e, r2.State, domain.SetSlot{Slot: "amount", Value: 75})
	assert.Equal(t, []string{"Send 75 to bob?"}, r3.Replies)
	require.NotNil(t, r3.Pending)
	assert.Equal(t, domain.TaskConfirm, r3.Pending.Kind)

	r4 := runTurn(t, e, r3.State, domain.Affirm{})
	assert.Equal(t, 1, *transfers)
	assert.Nil(t, r4.Pending)
}

func TestRunTurn_RepeatedDenialCancels(t *testing.T) {
	e, transfers := newTestEngine(t)
	state := domain.NewState("s1")

	r := runTurn(t, e, state, domain.StartFlow{
		Flow:  "transfer",
		Slots: map[string]any{"amount": 50, "recipient": "bob"},
	})

	// Two bare denials re-prompt, the third gives up and cancels.
	for i := 0; i < 2; i++ {
		r = runTurn(t, e, r.State, domain.Deny{})
		require.NotNil(t, r.Pending, "denial %d should re-prompt", i+1)
		assert.Equal(t, domain.TaskConfirm, r.Pending.Kind)
	}

	r = runTurn(t, e, r.State, domain.Deny{})
	assert.Nil(t, r.Pending)
	assert.Empty(t, r.State.Stack)
	assert.Contains(t, r.Replies, "Okay, I've stopped transfer.")
	assert.Zero(t, *transfers)
}

func TestRunTurn_CorrectionReissuesConfirm(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{
		Flow:  "transfer",
		Slots: map[string]any{"amount": 50, "recipient": "bob"},
	})
	require.NotNil(t, r1.Pending)

	r2 := runTurn(t, e, r1.State, domain.CorrectSlot{Slot: "amount", Value: 100})
	assert.Equal(t, []string{"Okay, amount is now 100.", "Send 100 to bob?"}, r2.Replies)
	require.NotNil(t, r2.Pending)
	assert.Equal(t, domain.TaskConfirm, r2.Pending.Kind)
}

func TestRunTurn_CancelPopsActiveFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "transfer"})
	r2 := runTurn(t, e, r1.State, domain.Cancel{})
	assert.Contains(t, r2.Replies, "Okay, I've stopped transfer.")
	assert.Empty(t, r2.State.Stack)
	assert.Nil(t, r2.Pending)
}

func TestRunTurn_CancelWhileIdle(t *testing.T) {
	e, _ := newTestEngine(t)

	r := runTurn(t, e, domain.NewState("s1"), domain.Cancel{})
	assert.Equal(t, []string{"There's nothing to cancel right now."}, r.Replies)
}

func TestRunTurn_ClarifyUsesStepExplanation(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "greet"})
	require.NotNil(t, r1.Pending)

	r2 := runTurn(t, e, r1.State, domain.Clarify{})
	assert.Equal(t, []string{"I use it to address you.", "What's your name?"}, r2.Replies)
	require.NotNil(t, r2.Pending)
}

func TestRunTurn_ClarifyFallback(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "transfer"})
	r2 := runTurn(t, e, r1.State, domain.Clarify{})
	assert.Contains(t, r2.Replies, "We're currently working through transfer.")
}

func TestRunTurn_CallRunsCalleeAndResumesCaller(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r := runTurn(t, e, state, domain.StartFlow{Flow: "outer"})
	assert.Equal(t, []string{"Starting outer.", "Inside inner.", "Back in outer."}, r.Replies)
	assert.Empty(t, r.State.Stack)
	assert.Nil(t, r.Pending)
}

func TestRunTurn_UnknownFlow(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RunTurn(context.Background(), domain.NewState("s1"), []domain.Command{
		domain.StartFlow{Flow: "ghost"},
	})
	assert.ErrorIs(t, err, flows.ErrNotFound)
}

func TestRunTurn_ChitChatLeftUnconsumed(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "greet"})
	r2 := runTurn(t, e, r1.State, domain.ChitChat{Hint: "nice weather"})

	// The prompt is re-issued and the flow stays suspended.
	assert.Equal(t, []string{"What's your name?"}, r2.Replies)
	require.NotNil(t, r2.Pending)
}

func TestRunTurn_ActionErrorAbortsTurn(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"boom": {{Step: "blow", Type: "action", Call: "explode"}},
	})
	require.NoError(t, err)

	actions := registry.NewActions()
	actions.Register("explode", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return nil, errors.New("downstream unavailable")
	})
	e := NewEngine(set, actions, registry.NewValidators())

	_, err = e.RunTurn(context.Background(), domain.NewState("s1"), []domain.Command{
		domain.StartFlow{Flow: "boom"},
	})
	var actionErr *domain.ActionExecutionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "explode", actionErr.Action)
}

func TestRunTurn_ValidatorRejectionReprompts(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"pay": {
			{Step: "ask_amount", Type: "collect", Slot: "amount",
				Message: "How much?", Validator: "positive"},
			{Step: "ok", Type: "say", Message: "Got {amount}."},
		},
	})
	require.NoError(t, err)

	validators := registry.NewValidators()
	validators.Register("positive", func(ctx context.Context, value any, slots map[string]any) (bool, error) {
		f, ok := value.(int)
		return ok && f > 0, nil
	})
	e := NewEngine(set, registry.NewActions(), validators)

	state := domain.NewState("s1")
	r1 := runTurn(t, e, state, domain.StartFlow{Flow: "pay"})
	require.NotNil(t, r1.Pending)

	r2 := runTurn(t, e, r1.State, domain.SetSlot{Slot: "amount", Value: -5})
	assert.Equal(t, []string{"How much?"}, r2.Replies)
	require.NotNil(t, r2.Pending, "rejected value should re-prompt")

	r3 := runTurn(t, e, r2.State, domain.SetSlot{Slot: "amount", Value: 20})
	assert.Equal(t, []string{"Got 20."}, r3.Replies)
	assert.Nil(t, r3.Pending)
}

func TestRunTurn_BranchRouting(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"route": {
			{Step: "pick", Type: "branch", Condition: "tier",
				Cases:   map[string]string{"gold": "vip", "basic": "std"},
				Default: "basic"},
			{Step: "vip", Type: "say", Message: "Welcome back!", JumpTo: "end"},
			{Step: "std", Type: "say", Message: "Hello."},
		},
	})
	require.NoError(t, err)
	e := NewEngine(set, registry.NewActions(), registry.NewValidators())

	r := runTurn(t, e, domain.NewState("s1"), domain.StartFlow{
		Flow: "route", Slots: map[string]any{"tier": "gold"},
	})
	assert.Equal(t, []string{"Welcome back!"}, r.Replies)

	// Unknown label falls back to the default case.
	r = runTurn(t, e, domain.NewState("s2"), domain.StartFlow{
		Flow: "route", Slots: map[string]any{"tier": "silver"},
	})
	assert.Equal(t, []string{"Hello."}, r.Replies)
}

func TestRunTurn_BranchWithoutMatchOrDefault(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"route": {
			{Step: "pick", Type: "branch", Condition: "tier",
				Cases: map[string]string{"gold": "end"}},
		},
	})
	require.NoError(t, err)
	e := NewEngine(set, registry.NewActions(), registry.NewValidators())

	_, err = e.RunTurn(context.Background(), domain.NewState("s1"), []domain.Command{
		domain.StartFlow{Flow: "route", Slots: map[string]any{"tier": "silver"}},
	})
	assert.ErrorIs(t, err, domain.ErrNoMatchingCase)
}

func TestRunTurn_WhileLoop(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"drain": {
			{Step: "loop", Type: "while", Condition: "items > 0", Do: []flows.StepDefinition{
				{Step: "note", Type: "set", Slot: "items", Value: 0},
			}},
			{Step: "done", Type: "say", Message: "Drained."},
		},
	})
	require.NoError(t, err)

	e := NewEngine(set, registry.NewActions(), registry.NewValidators())

	r := runTurn(t, e, domain.NewState("s1"), domain.StartFlow{
		Flow: "drain", Slots: map[string]any{"items": 3},
	})
	assert.Equal(t, []string{"Drained."}, r.Replies)
	assert.Empty(t, r.State.Stack)
}

func TestRunTurn_VisitBudgetGuardsRunawayLoops(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"forever": {
			{Step: "loop", Type: "while", Condition: "x == 1", Do: []flows.StepDefinition{
				{Step: "spin", Type: "branch", Condition: "x",
					Cases: map[string]string{"1": "loop"}},
			}},
		},
	})
	require.NoError(t, err)
	e := NewEngine(set, registry.NewActions(), registry.NewValidators(), WithMaxVisits(10))

	_, err = e.RunTurn(context.Background(), domain.NewState("s1"), []domain.Command{
		domain.StartFlow{Flow: "forever", Slots: map[string]any{"x": 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step budget")
}

func TestRunTurn_InformWaitsForAck(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"notice": {
			{Step: "warn", Type: "say", Message: "Fees apply.", WaitForAck: true},
			{Step: "go", Type: "say", Message: "Proceeding."},
		},
	})
	require.NoError(t, err)
	e := NewEngine(set, registry.NewActions(), registry.NewValidators())

	r1 := runTurn(t, e, domain.NewState("s1"), domain.StartFlow{Flow: "notice"})
	assert.Equal(t, []string{"Fees apply."}, r1.Replies)
	require.NotNil(t, r1.Pending)
	assert.Equal(t, domain.TaskInform, r1.Pending.Kind)

	// Any next turn acknowledges the inform and continues.
	r2 := runTurn(t, e, r1.State)
	assert.Equal(t, []string{"Proceeding."}, r2.Replies)
	assert.Nil(t, r2.Pending)
}

func TestRunTurn_LinkTransfersWithoutReturn(t *testing.T) {
	set, err := flows.CompileAll(flows.Definitions{
		"handoff": {
			{Step: "pre", Type: "say", Message: "Handing off."},
			{Step: "jump", Type: "link", Target: "landing"},
			{Step: "never", Type: "say", Message: "Unreachable."},
		},
		"landing": {
			{Step: "arrived", Type: "say", Message: "Landed."},
		},
	})
	require.NoError(t, err)
	e := NewEngine(set, registry.NewActions(), registry.NewValidators())

	r := runTurn(t, e, domain.NewState("s1"), domain.StartFlow{Flow: "handoff"})
	assert.Equal(t, []string{"Handing off.", "Landed."}, r.Replies)
	assert.NotContains(t, r.Replies, "Unreachable.")
	assert.Empty(t, r.State.Stack)
}

func TestRunTurn_InputStateIsNotMutated(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")

	result := runTurn(t, e, state, domain.StartFlow{Flow: "greet"})
	assert.Empty(t, state.Stack, "caller's state must stay untouched")
	assert.NotEmpty(t, result.State.Stack)
}

func TestRunTurn_RejectsInvalidState(t *testing.T) {
	e, _ := newTestEngine(t)
	state := domain.NewState("s1")
	state.Stack = []domain.FlowInstance{{FlowID: "f1", FlowName: "greet", Status: domain.StatusActive}}
	// No slot entry for f1.

	_, err := e.RunTurn(context.Background(), state, nil)
	var consistency *domain.StateConsistencyError
	assert.ErrorAs(t, err, &consistency)
}

func TestRunTurn_CustomCommandHandler(t *testing.T) {
	set, err := flows.CompileAll(testDefinitions())
	require.NoError(t, err)

	handled := 0
	custom := commandHandlerFunc{
		can: func(cmd domain.Command) bool {
			_, ok := cmd.(domain.ChitChat)
			return ok
		},
		handle: func(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error) {
			handled++
			return domain.Delta{}, nil
		},
	}
	engine := NewEngine(set, registry.NewActions(), registry.NewValidators(), WithCommandHandlers(custom))

	runTurn(t, engine, domain.NewState("s1"), domain.ChitChat{Hint: "hello"})
	assert.Equal(t, 1, handled)
}

type commandHandlerFunc struct {
	can    func(domain.Command) bool
	handle func(context.Context, domain.Command, *domain.State) (domain.Delta, error)
}

func (h commandHandlerFunc) CanHandle(cmd domain.Command) bool { return h.can(cmd) }
func (h commandHandlerFunc) Handle(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error) {
	return h.handle(ctx, cmd, state)
}

func TestProcessor_FoldsCommandsInOrder(t *testing.T) {
	set, err := flows.CompileAll(testDefinitions())
	require.NoError(t, err)
	p := NewProcessor(set, logging.NewNop())

	state := domain.NewState("s1")
	delta, unconsumed, err := p.Process(context.Background(), state, []domain.Command{
		domain.StartFlow{Flow: "transfer"},
		domain.SetSlot{Slot: "amount", Value: 50},
		domain.ChitChat{Hint: "hm"},
	})
	require.NoError(t, err)
	require.Len(t, unconsumed, 1)
	assert.Equal(t, "chitchat", unconsumed[0].CommandName())

	// The set_slot lands on the flow the earlier start_flow pushed.
	next := domain.Apply(state, delta)
	require.Len(t, next.Stack, 1)
	value, ok := next.Slots[next.ActiveFlowID()]["amount"]
	require.True(t, ok)
	assert.Equal(t, 50, value)
}
