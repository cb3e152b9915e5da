package memory

import (
	"context"
	"sync"

	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage"
)

// Repository is an in-memory implementation of the repository interface.
// Records are deep-copied on the way in and out so callers never share
// mutable state with the store.
type Repository struct {
	mu       sync.RWMutex
	sessions map[model.PlayerID]*model.SessionRecord
}

// New creates a new in-memory repository instance
func New() *Repository {
	return &Repository{
		sessions: make(map[model.PlayerID]*model.SessionRecord),
	}
}

// Ensure Repository implements the interface
var _ storage.Repository = (*Repository)(nil)

// FindSession returns the stored record for a player
func (r *Repository) FindSession(ctx context.Context, id model.PlayerID) (*model.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return rec.Clone(), nil
}

// SaveSession persists a record
func (r *Repository) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.ID] = rec.Clone()
	return nil
}

// Ready always reports true; the in-memory store has no handshake
func (r *Repository) Ready() bool {
	return true
}

// Count returns the number of stored records
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
