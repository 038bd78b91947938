package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/jmorenobl/soni-sub003/pkg/flows"
)

// CommandHandler is one entry in the processor's ordered handler list.
// The first handler whose CanHandle matches consumes the command.
type CommandHandler interface {
	CanHandle(cmd domain.Command) bool

	// Handle applies the command against a working state and returns
	// the resulting delta. It must not mutate the state.
	Handle(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error)
}

// Processor routes structured commands through an ordered, extensible
// handler list and folds the results into one merged delta.
type Processor struct {
	handlers []CommandHandler
	logger   *slog.Logger
}

// NewProcessor builds a processor with the built-in handlers
// (start-flow, cancel-flow, set-slot) followed by any extras.
func NewProcessor(set *flows.Set, logger *slog.Logger, extras ...CommandHandler) *Processor {
	handlers := []CommandHandler{
		&startFlowHandler{set: set},
		&cancelFlowHandler{},
		&setSlotHandler{},
	}
	handlers = append(handlers, extras...)
	return &Processor{handlers: handlers, logger: logger}
}

// Process applies commands in order against a working copy of the
// state, so later commands observe earlier commands' effects without
// mutating the caller's state. It returns the merged delta plus the
// commands no handler consumed; the caller may hand those to a
// flow-local node.
func (p *Processor) Process(ctx context.Context, state *domain.State, cmds []domain.Command) (domain.Delta, []domain.Command, error) {
	working := state.Clone()
	var merged domain.Delta
	var unconsumed []domain.Command

	for _, cmd := range cmds {
		handler := p.match(cmd)
		if handler == nil {
			p.logger.Debug("command left unconsumed", "command", cmd.CommandName())
			unconsumed = append(unconsumed, cmd)
			continue
		}

		delta, err := handler.Handle(ctx, cmd, working)
		if err != nil {
			return domain.Delta{}, nil, fmt.Errorf("handle %s: %w", cmd.CommandName(), err)
		}
		working = domain.Apply(working, delta)
		merged = domain.Merge(merged, delta)
	}

	return merged, unconsumed, nil
}

func (p *Processor) match(cmd domain.Command) CommandHandler {
	for _, h := range p.handlers {
		if h.CanHandle(cmd) {
			return h
		}
	}
	return nil
}

type startFlowHandler struct {
	set *flows.Set
}

func (h *startFlowHandler) CanHandle(cmd domain.Command) bool {
	_, ok := cmd.(domain.StartFlow)
	return ok
}

func (h *startFlowHandler) Handle(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error) {
	start := cmd.(domain.StartFlow)
	if !h.set.Has(start.Flow) {
		return domain.Delta{}, fmt.Errorf("%w: %s", flows.ErrNotFound, start.Flow)
	}
	_, delta := PushFlow(state, start.Flow, start.Slots)
	return delta, nil
}

type cancelFlowHandler struct{}

func (h *cancelFlowHandler) CanHandle(cmd domain.Command) bool {
	_, ok := cmd.(domain.CancelFlow)
	return ok
}

func (h *cancelFlowHandler) Handle(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error) {
	_, delta, err := PopFlow(state, domain.StatusCancelled)
	if err != nil {
		// Resume-after-already-popped is a legitimate race on replay.
		return domain.Delta{}, nil
	}
	return delta, nil
}

type setSlotHandler struct{}

func (h *setSlotHandler) CanHandle(cmd domain.Command) bool {
	_, ok := cmd.(domain.SetSlot)
	return ok
}

func (h *setSlotHandler) Handle(ctx context.Context, cmd domain.Command, state *domain.State) (domain.Delta, error) {
	set := cmd.(domain.SetSlot)
	return SetSlot(state, set.Slot, set.Value), nil
}
