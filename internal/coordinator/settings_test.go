package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhollow/sessiond/internal/dependencies/mocks"
	"github.com/emberhollow/sessiond/internal/model"
)

func TestSettingsDrainIsExactlyOnce(t *testing.T) {
	b := newSettingsBuffer(mocks.NewMockClock(time.Now()))
	id := model.NewPlayerID()

	b.Put(id, model.ToggleDropProtection, false)
	b.Put(id, model.ToggleAntiPVP, true)
	require.True(t, b.Pending(id))

	out := b.Drain(id)
	assert.Equal(t, map[string]bool{
		model.ToggleDropProtection: false,
		model.ToggleAntiPVP:        true,
	}, out)

	assert.False(t, b.Pending(id))
	assert.Nil(t, b.Drain(id), "a second drain must observe nothing")
}

func TestSettingsLatestChangeWins(t *testing.T) {
	b := newSettingsBuffer(mocks.NewMockClock(time.Now()))
	id := model.NewPlayerID()

	b.Put(id, model.ToggleAntiPVP, true)
	b.Put(id, model.ToggleAntiPVP, false)

	assert.Equal(t, map[string]bool{model.ToggleAntiPVP: false}, b.Drain(id))
}

func TestSettingsEvictAbandoned(t *testing.T) {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	b := newSettingsBuffer(clk)

	abandoned := model.NewPlayerID()
	owned := model.NewPlayerID()
	b.Put(abandoned, model.ToggleAntiPVP, true)
	b.Put(abandoned, model.ToggleDropProtection, false)
	b.Put(owned, model.ToggleAntiPVP, true)

	clk.Advance(11 * time.Minute)
	recent := model.NewPlayerID()
	b.Put(recent, model.ToggleAntiPVP, false)

	dropped := b.EvictAbandoned(10*time.Minute, func(id model.PlayerID) bool {
		return id == owned
	})

	assert.Equal(t, 2, dropped)
	assert.False(t, b.Pending(abandoned))
	assert.True(t, b.Pending(owned), "entries with a live owner survive regardless of age")
	assert.True(t, b.Pending(recent))
}
