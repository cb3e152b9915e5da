package coordinator

import (
	"log/slog"
	"sort"
	"time"

	"github.com/emberhollow/sessiond/internal/model"
)

// PlayerDiagnostic is one player's lifecycle view for the diagnostic surface
type PlayerDiagnostic struct {
	ID           model.PlayerID       `json:"id"`
	DisplayName  string               `json:"display_name,omitempty"`
	State        model.PlayerState    `json:"state"`
	Phase        model.LoadPhase      `json:"phase,omitempty"`
	Coordination model.ProcessingKind `json:"coordination,omitempty"`
}

// Diagnostics is an on-demand, read-only dump of coordinator state
type Diagnostics struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Players     []PlayerDiagnostic `json:"players"`
	Counters    map[string]uint64  `json:"counters"`
}

// Diagnostics returns the current per-player states, phases, coordination
// flags and cumulative counters. Read-only; its only side effect is a log line.
func (c *Coordinator) Diagnostics() Diagnostics {
	states := c.states.Snapshot()
	marks := c.coord.Snapshot()

	players := make([]PlayerDiagnostic, 0, len(states))
	for id, st := range states {
		players = append(players, c.describePlayer(id, st, marks[id]))
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID.String() < players[j].ID.String()
	})

	c.logger.Info("diagnostics requested", slog.Int("players", len(players)))

	return Diagnostics{
		GeneratedAt: c.clock.Now(),
		Players:     players,
		Counters:    c.counters.Snapshot(),
	}
}

// PlayerDiagnostics returns the diagnostic view for one player
func (c *Coordinator) PlayerDiagnostics(id model.PlayerID) (PlayerDiagnostic, bool) {
	st := c.states.Current(id)
	if st == model.StateOffline {
		return PlayerDiagnostic{}, false
	}
	kind, _ := c.coord.Kind(id)
	return c.describePlayer(id, st, kind), true
}

func (c *Coordinator) describePlayer(id model.PlayerID, st model.PlayerState, kind model.ProcessingKind) PlayerDiagnostic {
	d := PlayerDiagnostic{
		ID:           id,
		State:        st,
		Coordination: kind,
	}
	if rec, ok := c.record(id); ok {
		d.DisplayName = rec.DisplayName
	}
	if p, ok := c.progress.Get(id); ok {
		d.Phase = p.Phase
		if d.DisplayName == "" {
			d.DisplayName = p.DisplayName
		}
	}
	return d
}
