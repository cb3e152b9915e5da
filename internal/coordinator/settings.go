package coordinator

import (
	"sync"
	"time"

	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/model"
)

// bufferedToggle is one queued preference change
type bufferedToggle struct {
	enabled bool
	at      time.Time
}

// settingsBuffer queues preference toggles requested while a player's
// session cannot safely apply them (mid-load or under subsystem
// coordination). Whichever pipeline reaches the player first drains the
// buffer, so each change is applied exactly once.
type settingsBuffer struct {
	mu      sync.Mutex
	entries map[model.PlayerID]map[string]bufferedToggle
	clock   clock.Clock
}

func newSettingsBuffer(clk clock.Clock) *settingsBuffer {
	return &settingsBuffer{
		entries: make(map[model.PlayerID]map[string]bufferedToggle),
		clock:   clk,
	}
}

// Put queues a toggle change; a later change to the same toggle wins
func (b *settingsBuffer) Put(id model.PlayerID, name string, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.entries[id]
	if !ok {
		m = make(map[string]bufferedToggle)
		b.entries[id] = m
	}
	m[name] = bufferedToggle{enabled: enabled, at: b.clock.Now()}
}

// Drain removes and returns all queued changes for a player. The removal is
// atomic with the read, which is what makes application exactly-once when
// the loader and the save pipeline race for the same player.
func (b *settingsBuffer) Drain(id model.PlayerID) map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.entries[id]
	if !ok {
		return nil
	}
	delete(b.entries, id)

	out := make(map[string]bool, len(m))
	for name, t := range m {
		out[name] = t.enabled
	}
	return out
}

// Pending reports whether the player has queued changes
func (b *settingsBuffer) Pending(id model.PlayerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[id]
	return ok
}

// EvictAbandoned drops players whose entries are all older than maxAge and
// who have no owning session, returning the number of toggles dropped.
func (b *settingsBuffer) EvictAbandoned(maxAge time.Duration, hasSession func(model.PlayerID) bool) int {
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for id, m := range b.entries {
		if hasSession(id) {
			continue
		}
		stale := true
		for _, t := range m {
			if now.Sub(t.at) <= maxAge {
				stale = false
				break
			}
		}
		if stale {
			dropped += len(m)
			delete(b.entries, id)
		}
	}
	return dropped
}
