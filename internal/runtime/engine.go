package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmorenobl/soni-sub003/internal/logging"
	"github.com/jmorenobl/soni-sub003/internal/metrics"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
	"github.com/jmorenobl/soni-sub003/pkg/registry"
)

// defaultMaxVisits bounds the number of node visits per turn, the guard
// against runaway loops in flow definitions.
const defaultMaxVisits = 1000

// Engine is the suspend/resume runtime. It owns the command phase
// (pattern dispatcher first, then the command processor) and the
// execution phase that walks compiled graphs with idempotent re-entry.
type Engine struct {
	set        *flows.Set
	actions    *registry.Actions
	validators *registry.Validators
	processor  *Processor
	patterns   *Dispatcher
	evaluator  ConditionEvaluator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxVisits  int

	patternConfig PatternConfig
	extraHandlers []CommandHandler
}

// EngineOption configures the runtime.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConditionEvaluator replaces the default branch/loop evaluator.
func WithConditionEvaluator(eval ConditionEvaluator) EngineOption {
	return func(e *Engine) {
		if eval != nil {
			e.evaluator = eval
		}
	}
}

// WithPatternConfig overrides the pattern templates and thresholds.
func WithPatternConfig(cfg PatternConfig) EngineOption {
	return func(e *Engine) { e.patternConfig = cfg }
}

// WithCommandHandlers appends integrator command handlers after the
// built-ins.
func WithCommandHandlers(handlers ...CommandHandler) EngineOption {
	return func(e *Engine) { e.extraHandlers = append(e.extraHandlers, handlers...) }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxVisits overrides the per-turn node visit budget.
func WithMaxVisits(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxVisits = n
		}
	}
}

// NewEngine creates a runtime over the compiled flows and the
// integrator-supplied registries.
func NewEngine(set *flows.Set, actions *registry.Actions, validators *registry.Validators, opts ...EngineOption) *Engine {
	e := &Engine{
		set:           set,
		actions:       actions,
		validators:    validators,
		evaluator:     defaultEvaluator,
		logger:        logging.NewNop(),
		maxVisits:     defaultMaxVisits,
		patternConfig: DefaultPatternConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.patterns = NewDispatcher(set, e.patternConfig, e.logger)
	e.processor = NewProcessor(set, e.logger, e.extraHandlers...)
	return e
}

// TurnResult is the outcome of one turn: the post-turn state, the reply
// fragments in firing order, and the suspension marker if any.
type TurnResult struct {
	State   *domain.State
	Replies []string
	Pending *domain.PendingTask
}

// RunTurn executes one full turn: command phase, then the execution
// phase until every active flow has either suspended or completed. The
// input state is not mutated; on error the caller must not persist
// anything.
func (e *Engine) RunTurn(ctx context.Context, state *domain.State, cmds []domain.Command) (result *TurnResult, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeIdle
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case result != nil && result.Pending != nil:
			outcome = metrics.OutcomeSuspended
		}
		e.metrics.ObserveTurn(outcome, time.Since(start).Seconds())
	}()

	if err := domain.Validate(state); err != nil {
		return nil, err
	}

	working := state.Clone()
	var replies []string

	// An arriving turn acknowledges a pending inform.
	if working.Pending != nil && working.Pending.Kind == domain.TaskInform {
		working.Pending = nil
	}

	// Command phase: patterns first, remaining commands to the
	// processor.
	var rest []domain.Command
	for _, cmd := range cmds {
		e.metrics.ObserveCommand(cmd.CommandName())

		delta, response, handled, err := e.patterns.Dispatch(cmd, working)
		if err != nil {
			return nil, err
		}
		if !handled {
			rest = append(rest, cmd)
			continue
		}
		cancelled := stackShrank(working, delta)
		working = domain.Apply(working, delta)
		if cancelled {
			e.metrics.FlowEnded(true)
		}
		if response != "" {
			replies = append(replies, response)
		}
		// A pattern that popped or rerouted the active flow invalidates
		// the old suspension marker.
		if working.Pending != nil && working.Pending.FlowID != working.ActiveFlowID() {
			working.Pending = nil
		}
	}

	delta, unconsumed, err := e.processor.Process(ctx, working, rest)
	if err != nil {
		return nil, err
	}
	for _, cmd := range rest {
		if _, ok := cmd.(domain.StartFlow); ok {
			e.metrics.FlowStarted()
		}
	}
	working = domain.Apply(working, delta)
	for _, cmd := range unconsumed {
		e.logger.Debug("no handler consumed command", "command", cmd.CommandName())
	}

	// Execution phase. The pending task is recomputed from scratch by
	// the walk; stale markers must not leak across turns.
	working.Pending = nil
	visits := 0
	for working.Active() != nil {
		inst := working.Active()
		graph, err := e.set.Get(inst.FlowName)
		if err != nil {
			return nil, err
		}

		next, pending, err := e.walk(ctx, working, graph, &replies, &visits)
		if err != nil {
			return nil, err
		}
		working = next
		if pending != nil {
			working.Pending = pending
			break
		}
	}

	if err := domain.Validate(working); err != nil {
		return nil, err
	}

	return &TurnResult{
		State:   working,
		Replies: replies,
		Pending: working.Pending,
	}, nil
}

// stackShrank reports whether applying the delta removes the stack tail.
func stackShrank(state *domain.State, delta domain.Delta) bool {
	return delta.ReplaceStack && len(delta.Stack) < len(state.Stack)
}

// walk runs the active instance's graph until it suspends, transfers
// control, or reaches the terminal node. It returns the advanced state
// and, if the flow suspended, the pending task.
func (e *Engine) walk(ctx context.Context, st *domain.State, graph *flows.Graph, replies *[]string, visits *int) (*domain.State, *domain.PendingTask, error) {
	inst := st.Active()
	flowID := inst.FlowID
	cur := inst.CurrentStep
	if cur == "" {
		cur = graph.Entry
	}

	for {
		*visits++
		if *visits > e.maxVisits {
			return nil, nil, fmt.Errorf("flow %q exceeded the per-turn step budget of %d", graph.Name, e.maxVisits)
		}

		node := graph.Node(cur)
		if node == nil {
			return nil, nil, &domain.StateConsistencyError{
				Invariant: "current_step_resolves",
				Detail:    fmt.Sprintf("flow %q has no step %q", graph.Name, cur),
			}
		}

		st = domain.Apply(st, SetCurrentStep(st, cur))

		if node.Kind == flows.StepEnd {
			_, delta, err := PopFlow(st, domain.StatusCompleted)
			if err != nil {
				// Already popped on a replay; nothing to do.
				e.logger.Debug("end of flow with empty stack", "flow", graph.Name)
				return st, nil, nil
			}
			st = domain.Apply(st, delta)
			e.metrics.FlowEnded(false)
			e.logger.Debug("flow completed", "flow", graph.Name, "flow_id", flowID)
			return st, nil, nil
		}

		// Idempotent re-entry: side-effecting steps that already fired
		// are skipped straight to their default next. Branch and while
		// recompute from slots; collect re-evaluates its slot.
		if st.StepExecuted(flowID, node.ID) && skippableWhenExecuted(node.Kind) {
			cur = node.Next
			continue
		}

		var err error
		var pending *domain.PendingTask
		st, cur, pending, err = e.executeNode(ctx, st, graph, node, flowID, replies)
		if err != nil {
			return nil, nil, err
		}
		if pending != nil {
			return st, pending, nil
		}
		if cur == "" {
			// Control transferred to another instance (call or link).
			return st, nil, nil
		}
	}
}

func skippableWhenExecuted(kind flows.StepKind) bool {
	switch kind {
	case flows.StepSay, flows.StepAction, flows.StepSet, flows.StepCall, flows.StepLink, flows.StepConfirm:
		return true
	default:
		return false
	}
}
