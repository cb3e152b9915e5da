package coordinator

import "sync/atomic"

// Counters holds cumulative diagnostics counters, incremented lock-free from
// every pipeline and monitor.
type Counters struct {
	LoadsStarted        atomic.Uint64
	LoadsSucceeded      atomic.Uint64
	LoadsFailed         atomic.Uint64
	DuplicateConnects   atomic.Uint64
	EmergencyRecoveries atomic.Uint64

	SavesSucceeded           atomic.Uint64
	SavesFailed              atomic.Uint64
	SavesSkippedCoordination atomic.Uint64

	CoordinationEvents   atomic.Uint64
	CoordinationTimeouts atomic.Uint64

	SettingsBuffered atomic.Uint64
	SettingsApplied  atomic.Uint64
	SettingsEvicted  atomic.Uint64
}

// Snapshot returns the current counter values keyed by metric name
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"loads_started":              c.LoadsStarted.Load(),
		"loads_succeeded":            c.LoadsSucceeded.Load(),
		"loads_failed":               c.LoadsFailed.Load(),
		"duplicate_connects":         c.DuplicateConnects.Load(),
		"emergency_recoveries":       c.EmergencyRecoveries.Load(),
		"saves_succeeded":            c.SavesSucceeded.Load(),
		"saves_failed":               c.SavesFailed.Load(),
		"saves_skipped_coordination": c.SavesSkippedCoordination.Load(),
		"coordination_events":        c.CoordinationEvents.Load(),
		"coordination_timeouts":      c.CoordinationTimeouts.Load(),
		"settings_buffered":          c.SettingsBuffered.Load(),
		"settings_applied":           c.SettingsApplied.Load(),
		"settings_evicted":           c.SettingsEvicted.Load(),
	}
}
