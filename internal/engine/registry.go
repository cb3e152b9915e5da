package engine

import (
	"sync"

	"github.com/emberhollow/sessiond/internal/model"
)

// MapRankRegistry is an in-memory rank registry safe for concurrent use
type MapRankRegistry struct {
	mu    sync.RWMutex
	ranks map[model.PlayerID]string
}

// NewMapRankRegistry creates an empty rank registry
func NewMapRankRegistry() *MapRankRegistry {
	return &MapRankRegistry{ranks: make(map[model.PlayerID]string)}
}

var _ RankRegistry = (*MapRankRegistry)(nil)

func (r *MapRankRegistry) SetRank(id model.PlayerID, rank string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranks[id] = rank
}

func (r *MapRankRegistry) RemoveRank(id model.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ranks, id)
}

// Rank returns the published rank for a player, if any
func (r *MapRankRegistry) Rank(id model.PlayerID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rank, ok := r.ranks[id]
	return rank, ok
}

// MapTagRegistry is an in-memory chat-tag registry safe for concurrent use
type MapTagRegistry struct {
	mu   sync.RWMutex
	tags map[model.PlayerID]string
}

// NewMapTagRegistry creates an empty tag registry
func NewMapTagRegistry() *MapTagRegistry {
	return &MapTagRegistry{tags: make(map[model.PlayerID]string)}
}

var _ TagRegistry = (*MapTagRegistry)(nil)

func (r *MapTagRegistry) SetTag(id model.PlayerID, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[id] = tag
}

func (r *MapTagRegistry) RemoveTag(id model.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tags, id)
}

// Tag returns the published chat tag for a player, if any
func (r *MapTagRegistry) Tag(id model.PlayerID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[id]
	return tag, ok
}
