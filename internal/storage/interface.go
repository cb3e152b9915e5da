package storage

import (
	"context"

	"github.com/emberhollow/sessiond/internal/model"
)

// Repository defines the interface for session record persistence.
//
// The coordinator treats it as a black box satisfying at-least-once durable
// writes per successful call. Implementations are only usable after their
// initialization handshake completes, reported by Ready. The "synchronous"
// save of the contract is a direct call on the caller's goroutine; the
// pipelines provide the asynchronous variant by dispatching onto their
// bounded I/O workers.
type Repository interface {
	// FindSession returns the stored record for a player, or
	// model.ErrSessionNotFound if none exists.
	FindSession(ctx context.Context, id model.PlayerID) (*model.SessionRecord, error)

	// SaveSession durably persists a record.
	SaveSession(ctx context.Context, rec *model.SessionRecord) error

	// Ready reports whether the initialization handshake has completed
	// and the backend is reachable.
	Ready() bool
}
