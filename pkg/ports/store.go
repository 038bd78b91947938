package ports

import (
	"context"

	"github.com/jmorenobl/soni-sub003/pkg/domain"
)

// CheckpointStore persists per-session state blobs. Suspension survives
// process restarts because everything needed to resume lives in the
// saved State.
type CheckpointStore interface {
	// Save persists the state for a session id.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a session id. Returns
	// domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a session id.
	Delete(ctx context.Context, sessionID string) error
}
