package ports

import (
	"context"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
)

// TurnContext is what the understanding provider sees about the current
// conversation when classifying a message.
type TurnContext struct {
	// ActiveFlow is the name of the innermost flow, empty when idle.
	ActiveFlow string

	// ExpectedSlot is the slot the engine is suspended on, if any.
	ExpectedSlot string

	// Pending is the current suspension marker, if any.
	Pending *domain.PendingTask

	// AvailableFlows lists the flow names a StartFlow may reference.
	AvailableFlows []string
}

// UnderstandingProvider turns raw user text into structured commands.
// It is an external collaborator with no guaranteed determinism; the
// engine tolerates empty output by treating it as zero commands, but a
// returned error aborts the turn.
type UnderstandingProvider interface {
	Classify(ctx context.Context, userText string, tc TurnContext) ([]domain.Command, error)
}

// ClassifyFunc adapts a plain function to UnderstandingProvider.
type ClassifyFunc func(ctx context.Context, userText string, tc TurnContext) ([]domain.Command, error)

func (f ClassifyFunc) Classify(ctx context.Context, userText string, tc TurnContext) ([]domain.Command, error) {
	return f(ctx, userText, tc)
}
