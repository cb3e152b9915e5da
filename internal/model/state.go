package model

import "time"

// PlayerState is the coordinator-owned lifecycle state for one player,
// separate from the session record itself.
type PlayerState string

const (
	StateOffline              PlayerState = "offline"
	StateLoading              PlayerState = "loading"
	StateReady                PlayerState = "ready"
	StateFailed               PlayerState = "failed"
	StateDeathProcessing      PlayerState = "death_processing"
	StatePunishmentProcessing PlayerState = "punishment_processing"
)

// LoadPhase is the current phase of an in-flight load
type LoadPhase string

const (
	PhaseStarting               LoadPhase = "starting"
	PhaseFetchingData           LoadPhase = "fetching_data"
	PhaseApplyingData           LoadPhase = "applying_data"
	PhaseDeathCoordination      LoadPhase = "death_coordination"
	PhasePunishmentCoordination LoadPhase = "punishment_coordination"
	PhaseCompleted              LoadPhase = "completed"
	PhaseFailed                 LoadPhase = "failed"
)

// Coordination reports whether the phase waits on an external subsystem.
// Coordination phases get a longer stuck-loading threshold.
func (p LoadPhase) Coordination() bool {
	return p == PhaseDeathCoordination || p == PhasePunishmentCoordination
}

// LoadingProgress tracks one player's in-flight load
type LoadingProgress struct {
	PlayerID    PlayerID
	DisplayName string
	StartedAt   time.Time
	Phase       LoadPhase
}

// ProcessingKind identifies which external subsystem currently owns a player
type ProcessingKind string

const (
	ProcessingDeath      ProcessingKind = "death"
	ProcessingPunishment ProcessingKind = "punishment"
)
