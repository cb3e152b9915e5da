package engine

import (
	"context"
	"log/slog"

	"github.com/emberhollow/sessiond/internal/model"
)

// NopEngine is an engine with no connected players. It lets the server run
// standalone (diagnostics, storage checks) before the real engine binding is
// attached, and serves as the default when none is configured.
type NopEngine struct {
	logger *slog.Logger
}

// NewNopEngine creates a NopEngine
func NewNopEngine(logger *slog.Logger) *NopEngine {
	return &NopEngine{logger: logger.With(slog.String("component", "engine"))}
}

var _ Engine = (*NopEngine)(nil)

func (e *NopEngine) Session(id model.PlayerID) (LiveSession, bool) {
	return nil, false
}

func (e *NopEngine) Population() int {
	return 0
}

func (e *NopEngine) Announce(text string) {
	e.logger.Info("announce", slog.String("text", text))
}

// NopDeathSubsystem reports no death processing and restores nothing
type NopDeathSubsystem struct{}

var _ DeathSubsystem = NopDeathSubsystem{}

func (NopDeathSubsystem) IsProcessingDeath(id model.PlayerID) bool { return false }

func (NopDeathSubsystem) HandleRespawnRejoin(ctx context.Context, id model.PlayerID) error {
	return nil
}

// NopPunishmentSubsystem reports no combat logouts and applies nothing
type NopPunishmentSubsystem struct{}

var _ PunishmentSubsystem = NopPunishmentSubsystem{}

func (NopPunishmentSubsystem) IsCombatLoggingOut(id model.PlayerID) bool { return false }

func (NopPunishmentSubsystem) HandleRejoin(ctx context.Context, id model.PlayerID) error {
	return nil
}
