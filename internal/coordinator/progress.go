package coordinator

import (
	"sync"
	"time"

	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/model"
)

// progressTracker records every in-flight load so the stuck-loading monitor
// can detect pipelines that stopped making progress.
type progressTracker struct {
	mu      sync.RWMutex
	records map[model.PlayerID]*model.LoadingProgress
	clock   clock.Clock
}

func newProgressTracker(clk clock.Clock) *progressTracker {
	return &progressTracker{
		records: make(map[model.PlayerID]*model.LoadingProgress),
		clock:   clk,
	}
}

// Begin registers a new loading-progress record in phase starting
func (t *progressTracker) Begin(id model.PlayerID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = &model.LoadingProgress{
		PlayerID:    id,
		DisplayName: name,
		StartedAt:   t.clock.Now(),
		Phase:       model.PhaseStarting,
	}
}

// SetPhase advances a player's loading phase; no-op if the load finished
func (t *progressTracker) SetPhase(id model.PlayerID, phase model.LoadPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[id]; ok {
		rec.Phase = phase
	}
}

// Get returns a copy of the player's progress record
func (t *progressTracker) Get(id model.PlayerID) (model.LoadingProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return model.LoadingProgress{}, false
	}
	return *rec, true
}

// Remove deletes a player's progress record
func (t *progressTracker) Remove(id model.PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

// Stale returns copies of records older than the phase-dependent threshold:
// coordination phases get the longer limit because an external subsystem is
// legitimately holding the load open.
func (t *progressTracker) Stale(normal, coordination time.Duration) []model.LoadingProgress {
	now := t.clock.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []model.LoadingProgress
	for _, rec := range t.records {
		limit := normal
		if rec.Phase.Coordination() {
			limit = coordination
		}
		if now.Sub(rec.StartedAt) > limit {
			out = append(out, *rec)
		}
	}
	return out
}
