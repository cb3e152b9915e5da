package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/model"
)

// coordinationEntry marks one player as owned by an external subsystem.
// done is closed when the subsystem signals completion, so waiters block on
// a channel instead of polling.
type coordinationEntry struct {
	kind  model.ProcessingKind
	since time.Time
	done  chan struct{}
}

// coordinationRegistry tracks which players are currently being mutated by
// the Death or Punishment subsystems. It is the mutual-exclusion authority:
// pipelines consult it before any destructive step, so no two of
// {loader, saver, subsystem} touch the same record simultaneously.
type coordinationRegistry struct {
	mu      sync.Mutex
	entries map[model.PlayerID]*coordinationEntry
	clock   clock.Clock
}

func newCoordinationRegistry(clk clock.Clock) *coordinationRegistry {
	return &coordinationRegistry{
		entries: make(map[model.PlayerID]*coordinationEntry),
		clock:   clk,
	}
}

// Mark registers a player as owned by a subsystem. Returns false if the
// player is already marked (by either kind).
func (r *coordinationRegistry) Mark(id model.PlayerID, kind model.ProcessingKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return false
	}
	r.entries[id] = &coordinationEntry{
		kind:  kind,
		since: r.clock.Now(),
		done:  make(chan struct{}),
	}
	return true
}

// Unmark clears a player's mark of the given kind, signalling any waiters.
// Returns false if the player was not marked with that kind.
func (r *coordinationRegistry) Unmark(id model.PlayerID, kind model.ProcessingKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.kind != kind {
		return false
	}
	delete(r.entries, id)
	close(entry.done)
	return true
}

// ForceClear removes a player's mark regardless of kind, signalling waiters.
// Used by timeout recovery when a subsystem never signals completion.
func (r *coordinationRegistry) ForceClear(id model.PlayerID) (model.ProcessingKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return "", false
	}
	delete(r.entries, id)
	close(entry.done)
	return entry.kind, true
}

// Kind returns the subsystem currently owning the player, if any
func (r *coordinationRegistry) Kind(id model.PlayerID) (model.ProcessingKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return entry.kind, true
}

// IsMarked reports whether the player is owned by the given subsystem
func (r *coordinationRegistry) IsMarked(id model.PlayerID, kind model.ProcessingKind) bool {
	k, ok := r.Kind(id)
	return ok && k == kind
}

// Wait blocks until the player has no mark or the context expires.
// Loops because a player can be re-marked between signal and re-check.
func (r *coordinationRegistry) Wait(ctx context.Context, id model.PlayerID) error {
	for {
		r.mu.Lock()
		entry, ok := r.entries[id]
		r.mu.Unlock()
		if !ok {
			return nil
		}

		select {
		case <-entry.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// evicted describes an entry removed by the timeout monitor
type evicted struct {
	id   model.PlayerID
	kind model.ProcessingKind
	age  time.Duration
}

// EvictOlderThan force-clears entries older than maxAge, so pipelines proceed
// rather than hang forever on a subsystem that failed to signal completion.
func (r *coordinationRegistry) EvictOlderThan(maxAge time.Duration) []evicted {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []evicted
	for id, entry := range r.entries {
		age := now.Sub(entry.since)
		if age > maxAge {
			delete(r.entries, id)
			close(entry.done)
			out = append(out, evicted{id: id, kind: entry.kind, age: age})
		}
	}
	return out
}

// Snapshot returns the current marks for diagnostics
func (r *coordinationRegistry) Snapshot() map[model.PlayerID]model.ProcessingKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.PlayerID]model.ProcessingKind, len(r.entries))
	for id, entry := range r.entries {
		out[id] = entry.kind
	}
	return out
}
