package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhollow/sessiond/internal/dependencies/mocks"
	"github.com/emberhollow/sessiond/internal/model"
)

func TestProgressLifecycle(t *testing.T) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	tr := newProgressTracker(clk)
	id := model.NewPlayerID()

	_, ok := tr.Get(id)
	require.False(t, ok)

	tr.Begin(id, "alyx")
	p, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStarting, p.Phase)
	assert.Equal(t, "alyx", p.DisplayName)
	assert.Equal(t, clk.Now(), p.StartedAt)

	tr.SetPhase(id, model.PhaseFetchingData)
	p, _ = tr.Get(id)
	assert.Equal(t, model.PhaseFetchingData, p.Phase)

	tr.Remove(id)
	_, ok = tr.Get(id)
	assert.False(t, ok)

	// SetPhase after removal must not resurrect the record
	tr.SetPhase(id, model.PhaseCompleted)
	_, ok = tr.Get(id)
	assert.False(t, ok)
}

func TestProgressStaleThresholds(t *testing.T) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	tr := newProgressTracker(clk)

	normal := model.NewPlayerID()
	coordinated := model.NewPlayerID()
	tr.Begin(normal, "alyx")
	tr.Begin(coordinated, "barney")
	tr.SetPhase(coordinated, model.PhasePunishmentCoordination)

	assert.Empty(t, tr.Stale(30*time.Second, 60*time.Second))

	// Past the normal threshold: only the uncoordinated load is stale
	clk.Advance(45 * time.Second)
	stale := tr.Stale(30*time.Second, 60*time.Second)
	require.Len(t, stale, 1)
	assert.Equal(t, normal, stale[0].PlayerID)

	// Past the coordination threshold: both are stale
	clk.Advance(30 * time.Second)
	assert.Len(t, tr.Stale(30*time.Second, 60*time.Second), 2)
}
