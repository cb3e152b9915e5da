package coordinator

import (
	"sync"

	"github.com/emberhollow/sessiond/internal/model"
)

// playerState holds one player's lifecycle state behind its own read-write
// lock so queries never observe a half-updated transition.
type playerState struct {
	mu      sync.RWMutex
	current model.PlayerState
}

// stateStore is the per-player state machine store. Lock entries are created
// lazily and never removed; going offline resets the state value, not the
// entry. The ID space is bounded by players who have ever connected, so the
// amortized cost is acceptable.
type stateStore struct {
	mu      sync.RWMutex
	players map[model.PlayerID]*playerState
}

func newStateStore() *stateStore {
	return &stateStore{players: make(map[model.PlayerID]*playerState)}
}

func (s *stateStore) entry(id model.PlayerID) *playerState {
	s.mu.RLock()
	ps, ok := s.players[id]
	s.mu.RUnlock()
	if ok {
		return ps
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok = s.players[id]; ok {
		return ps
	}
	ps = &playerState{current: model.StateOffline}
	s.players[id] = ps
	return ps
}

// Current returns the player's state; players without an entry are offline
func (s *stateStore) Current(id model.PlayerID) model.PlayerState {
	s.mu.RLock()
	ps, ok := s.players[id]
	s.mu.RUnlock()
	if !ok {
		return model.StateOffline
	}

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.current
}

// Set forces the player's state unconditionally
func (s *stateStore) Set(id model.PlayerID, to model.PlayerState) {
	ps := s.entry(id)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.current = to
}

// Transition moves the player to the target state only if the current state
// is one of the allowed source states, reporting whether it did. This is the
// linearization point for all lifecycle transitions.
func (s *stateStore) Transition(id model.PlayerID, to model.PlayerState, from ...model.PlayerState) bool {
	ps := s.entry(id)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, f := range from {
		if ps.current == f {
			ps.current = to
			return true
		}
	}
	return false
}

// Snapshot returns the states of all players that are not offline
func (s *stateStore) Snapshot() map[model.PlayerID]model.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.PlayerID]model.PlayerState)
	for id, ps := range s.players {
		ps.mu.RLock()
		st := ps.current
		ps.mu.RUnlock()
		if st != model.StateOffline {
			out[id] = st
		}
	}
	return out
}
