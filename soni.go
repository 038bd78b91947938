package soni

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmorenobl/soni-sub003/internal/logging"
	"github.com/jmorenobl/soni-sub003/internal/metrics"
	"github.com/jmorenobl/soni-sub003/internal/runtime"
	"github.com/jmorenobl/soni-sub003/pkg/adapters/memory"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
	"github.com/jmorenobl/soni-sub003/pkg/ports"
	"github.com/jmorenobl/soni-sub003/pkg/registry"
	"github.com/jmorenobl/soni-sub003/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the high-level entry point of the library. It wires the
// compiled flows, the runtime, the session manager, and the
// understanding provider into the one call a front end needs:
// ProcessTurn.
type Engine struct {
	core     *runtime.Engine
	set      *flows.Set
	sessions *session.Manager
	provider ports.UnderstandingProvider
	logger   *slog.Logger

	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	actions     *registry.Actions
	validators  *registry.Validators
	runtimeOpts []runtime.EngineOption
}

// Option configures the Engine.
type Option func(*Engine)

// WithCheckpointStore sets the persistence backend (default: in-memory).
func WithCheckpointStore(store ports.CheckpointStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithUnderstanding sets the understanding provider. Without one, only
// ProcessCommands is usable.
func WithUnderstanding(provider ports.UnderstandingProvider) Option {
	return func(e *Engine) { e.provider = provider }
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithActions sets the action registry.
func WithActions(actions *registry.Actions) Option {
	return func(e *Engine) { e.actions = actions }
}

// WithValidators sets the validator registry.
func WithValidators(validators *registry.Validators) Option {
	return func(e *Engine) { e.validators = validators }
}

// WithLogger sets a structured logger for the engine and its parts.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPatternConfig overrides the conversational pattern templates.
func WithPatternConfig(cfg runtime.PatternConfig) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithPatternConfig(cfg))
	}
}

// WithCommandHandlers appends integrator command handlers.
func WithCommandHandlers(handlers ...runtime.CommandHandler) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCommandHandlers(handlers...))
	}
}

// WithConditionEvaluator replaces the default branch/loop evaluator.
func WithConditionEvaluator(eval runtime.ConditionEvaluator) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithConditionEvaluator(eval))
	}
}

// WithMetrics registers Prometheus collectors with reg and attaches
// them to the runtime.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMetrics(metrics.New(reg)))
	}
}

// New compiles the flow definitions and assembles an engine. Definition
// problems surface here as *flows.CompilationError, never at run time.
func New(defs flows.Definitions, opts ...Option) (*Engine, error) {
	eng := &Engine{
		logger:     logging.NewNop(),
		actions:    registry.NewActions(),
		validators: registry.NewValidators(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	set, err := flows.CompileAll(defs)
	if err != nil {
		return nil, err
	}
	eng.set = set

	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	runtimeOpts := append([]runtime.EngineOption{runtime.WithLogger(eng.logger)}, eng.runtimeOpts...)
	eng.core = runtime.NewEngine(set, eng.actions, eng.validators, runtimeOpts...)

	return eng, nil
}

// Flows returns the compiled flow names.
func (e *Engine) Flows() []string {
	return e.set.Names()
}

// Actions returns the action registry for integrator registration.
func (e *Engine) Actions() *registry.Actions {
	return e.actions
}

// Validators returns the validator registry.
func (e *Engine) Validators() *registry.Validators {
	return e.validators
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// ProcessTurn handles one user message for a session: load, classify,
// run the turn, save, reply. A failed turn leaves the persisted state
// untouched, so from the outside it is a no-op.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, userText string) (string, error) {
	if e.provider == nil {
		return "", fmt.Errorf("no understanding provider configured")
	}

	var reply string
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.loadOrCreate(ctx, sessionID)
		if err != nil {
			return err
		}

		cmds, err := e.provider.Classify(ctx, userText, e.turnContext(state))
		if err != nil {
			return &domain.UnderstandingProviderError{Err: err}
		}

		reply, err = e.runAndSave(ctx, sessionID, state, cmds)
		return err
	})
	return reply, err
}

// ProcessCommands runs a turn from already-classified commands,
// bypassing the understanding provider. Front ends that speak the
// structured command format directly (tests, the HTTP commands
// endpoint) use this.
func (e *Engine) ProcessCommands(ctx context.Context, sessionID string, cmds []domain.Command) (string, error) {
	var reply string
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.loadOrCreate(ctx, sessionID)
		if err != nil {
			return err
		}
		reply, err = e.runAndSave(ctx, sessionID, state, cmds)
		return err
	})
	return reply, err
}

// State returns the current persisted state of a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.State, error) {
	return e.sessions.Load(ctx, sessionID)
}

// EndSession deletes the session's checkpoint.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

func (e *Engine) loadOrCreate(ctx context.Context, sessionID string) (*domain.State, error) {
	state, err := e.sessions.Store().Load(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.NewState(sessionID), nil
	}
	return nil, fmt.Errorf("load session: %w", err)
}

func (e *Engine) runAndSave(ctx context.Context, sessionID string, state *domain.State, cmds []domain.Command) (string, error) {
	result, err := e.core.RunTurn(ctx, state, cmds)
	if err != nil {
		e.logger.Error("turn aborted", "session_id", sessionID, "err", err)
		return "", err
	}

	result.State.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Store().Save(ctx, sessionID, result.State); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return strings.Join(result.Replies, "\n"), nil
}

func (e *Engine) turnContext(state *domain.State) ports.TurnContext {
	tc := ports.TurnContext{
		AvailableFlows: e.set.Names(),
		Pending:        state.Pending,
	}
	if inst := state.Active(); inst != nil {
		tc.ActiveFlow = inst.FlowName
	}
	if state.Pending != nil {
		tc.ExpectedSlot = state.Pending.SlotName
	}
	return tc
}
