package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlayerID uniquely identifies a player across the system.
// It is the stable identifier session records are keyed by.
type PlayerID = uuid.UUID

// NewPlayerID generates a fresh player identifier
func NewPlayerID() PlayerID {
	return uuid.New()
}

// ParsePlayerID parses a player identifier from its string form
func ParsePlayerID(s string) (PlayerID, error) {
	return uuid.Parse(s)
}

// PunishmentState marks whether a combat-logout penalty has been computed
// and is pending application on rejoin.
type PunishmentState string

const (
	PunishmentNone      PunishmentState = "none"
	PunishmentProcessed PunishmentState = "processed"
)

// GameMode is the player's game mode
type GameMode string

const (
	GameModeSurvival  GameMode = "survival"
	GameModeCreative  GameMode = "creative"
	GameModeAdventure GameMode = "adventure"
	GameModeSpectator GameMode = "spectator"
)

// DefaultGameMode is used when a stored game mode cannot be parsed
const DefaultGameMode = GameModeSurvival

// ParseGameMode returns the game mode for a stored string, and whether it was valid
func ParseGameMode(s string) (GameMode, bool) {
	switch GameMode(s) {
	case GameModeSurvival, GameModeCreative, GameModeAdventure, GameModeSpectator:
		return GameMode(s), true
	}
	return DefaultGameMode, false
}

// Well-known toggle preference names
const (
	ToggleDropProtection = "dropProtection"
	ToggleAntiPVP        = "antiPVP"
)

// DefaultMaxHealth is the max health for a fresh session record
const DefaultMaxHealth = 20.0

// ItemStack is one inventory slot snapshot
type ItemStack struct {
	Slot  int
	Item  string
	Count int
}

// Location is a position in a world
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32
}

// BanStatus records an active ban, if any
type BanStatus struct {
	Banned bool
	Reason string
	Expiry time.Time
}

// SessionRecord is the persisted state for one player: inventory, stats,
// preferences and lifecycle markers. One record exists in the live registry
// for a player if and only if that player is connected or mid-load.
type SessionRecord struct {
	ID          PlayerID
	DisplayName string

	Health     float64
	MaxHealth  float64
	Experience int
	Inventory  []ItemStack
	Location   Location
	GameMode   GameMode
	Rank       string
	ChatTag    string
	Ban        BanStatus
	Toggles    map[string]bool
	Guild      string
	Alignment  string

	// Lifecycle markers
	PunishmentState        PunishmentState
	InventoryBeingApplied  bool
	InventorySavedAt       time.Time
	HasPendingRespawnItems bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// Transient per-connection scratch data, never persisted
	Scratch map[string]any `json:"-"`
}

// NewSessionRecord builds a fresh default record for a first-ever join
func NewSessionRecord(id PlayerID, name string, now time.Time) *SessionRecord {
	return &SessionRecord{
		ID:               id,
		DisplayName:      name,
		Health:           DefaultMaxHealth,
		MaxHealth:        DefaultMaxHealth,
		GameMode:         DefaultGameMode,
		Toggles:          DefaultToggles(),
		Location:         Location{World: "world"},
		PunishmentState:  PunishmentNone,
		InventorySavedAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
		Scratch:          map[string]any{},
	}
}

// DefaultToggles returns the toggle set applied to new players
func DefaultToggles() map[string]bool {
	return map[string]bool{
		ToggleDropProtection: true,
		ToggleAntiPVP:        true,
	}
}

// Normalize corrects malformed fields in place, returning a description of
// each correction made. Corrections are applied rather than surfaced as
// errors; a malformed stored record must never block a player from loading.
func (r *SessionRecord) Normalize() []string {
	var fixes []string

	if r.MaxHealth <= 0 {
		fixes = append(fixes, fmt.Sprintf("max health %v reset to %v", r.MaxHealth, DefaultMaxHealth))
		r.MaxHealth = DefaultMaxHealth
	}
	if r.Health < 0 {
		fixes = append(fixes, fmt.Sprintf("health %v clamped to 0", r.Health))
		r.Health = 0
	}
	if r.Health > r.MaxHealth {
		fixes = append(fixes, fmt.Sprintf("health %v clamped to max %v", r.Health, r.MaxHealth))
		r.Health = r.MaxHealth
	}
	if _, ok := ParseGameMode(string(r.GameMode)); !ok {
		fixes = append(fixes, fmt.Sprintf("game mode %q reset to %q", r.GameMode, DefaultGameMode))
		r.GameMode = DefaultGameMode
	}
	switch r.PunishmentState {
	case PunishmentNone, PunishmentProcessed:
	default:
		fixes = append(fixes, fmt.Sprintf("punishment state %q reset to %q", r.PunishmentState, PunishmentNone))
		r.PunishmentState = PunishmentNone
	}
	if r.Experience < 0 {
		fixes = append(fixes, fmt.Sprintf("experience %d clamped to 0", r.Experience))
		r.Experience = 0
	}
	if r.Toggles == nil {
		fixes = append(fixes, "missing toggles reset to defaults")
		r.Toggles = DefaultToggles()
	}
	if r.Location.World == "" {
		fixes = append(fixes, "missing world reset to default")
		r.Location.World = "world"
	}
	if r.Scratch == nil {
		r.Scratch = map[string]any{}
	}

	return fixes
}

// Clone returns a deep copy of the record. Scratch data is transient and
// not carried over.
func (r *SessionRecord) Clone() *SessionRecord {
	out := *r
	out.Inventory = append([]ItemStack(nil), r.Inventory...)
	out.Toggles = make(map[string]bool, len(r.Toggles))
	for k, v := range r.Toggles {
		out.Toggles[k] = v
	}
	out.Scratch = nil
	return &out
}

// SetToggle sets a toggle preference
func (r *SessionRecord) SetToggle(name string, enabled bool) {
	if r.Toggles == nil {
		r.Toggles = map[string]bool{}
	}
	r.Toggles[name] = enabled
}

// Toggle reads a toggle preference, defaulting to false when unset
func (r *SessionRecord) Toggle(name string) bool {
	return r.Toggles[name]
}
