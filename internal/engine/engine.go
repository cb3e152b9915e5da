// Package engine defines the ports through which the session coordinator
// touches the live game server: live session objects, the Death and
// Punishment subsystems, and the rank/chat-tag registries. The coordinator
// never reaches into engine internals; everything it needs crosses these
// interfaces.
package engine

import (
	"context"

	"github.com/emberhollow/sessiond/internal/model"
)

// LiveSession is the in-engine object for one connected player, distinct
// from the persisted session record. Its methods must only be called from
// the main scheduler context.
type LiveSession interface {
	ID() model.PlayerID
	Name() string

	// Connected reports whether the player is still online
	Connected() bool

	// SetFrozen toggles the restricted mid-load presentation: movement
	// locked, non-damageable, actions suppressed.
	SetFrozen(frozen bool)

	// CaptureInto copies the live inventory and stats into the record,
	// unconditionally.
	CaptureInto(rec *model.SessionRecord)

	// Apply pushes a record's inventory, stats, game mode and location
	// onto the live session.
	Apply(rec *model.SessionRecord) error

	// ApplyToggle applies a preference toggle to the live session
	ApplyToggle(name string, enabled bool)

	// Message sends a chat message to the player
	Message(text string)
}

// Engine is the live game server as seen by the coordinator
type Engine interface {
	// Session returns the live session for a player, if the player is
	// currently connected.
	Session(id model.PlayerID) (LiveSession, bool)

	// Population returns the current number of connected players
	Population() int

	// Announce broadcasts a server-wide message
	Announce(text string)
}

// DeathSubsystem handles death mechanics, including items held back for
// respawn. The coordinator marks players in the coordination registry around
// every hand-off so the two never mutate the same record concurrently.
type DeathSubsystem interface {
	IsProcessingDeath(id model.PlayerID) bool

	// HandleRespawnRejoin restores pending respawn items for a player who
	// reconnected. Called mid-load while the player is marked in the
	// coordination registry; loading finalizes only after it returns.
	HandleRespawnRejoin(ctx context.Context, id model.PlayerID) error
}

// PunishmentSubsystem handles combat-logout penalties
type PunishmentSubsystem interface {
	IsCombatLoggingOut(id model.PlayerID) bool

	// HandleRejoin applies a computed combat-logout penalty to a player
	// who reconnected with punishment state "processed".
	HandleRejoin(ctx context.Context, id model.PlayerID) error
}

// RankRegistry publishes players' permission ranks to the rest of the server
type RankRegistry interface {
	SetRank(id model.PlayerID, rank string)
	RemoveRank(id model.PlayerID)
}

// TagRegistry publishes players' chat tags to the rest of the server
type TagRegistry interface {
	SetTag(id model.PlayerID, tag string)
	RemoveTag(id model.PlayerID)
}
