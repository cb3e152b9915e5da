package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emberhollow/sessiond/internal/model"
)

var errLoadingStuck = errors.New("loading exceeded phase timeout")

// HandleConnect starts the loading pipeline for a newly connected player.
// The player is never left without a usable session: the pipeline either
// reaches ready, or fails and is synchronously rebuilt by emergency
// recovery. Duplicate connect events are ignored.
func (c *Coordinator) HandleConnect(id model.PlayerID, name string) {
	if c.shuttingDown() {
		c.logger.Warn("connect refused during shutdown", slog.String("player_id", id.String()))
		return
	}

	// Linearization point: exactly one concurrent connect wins
	if !c.states.Transition(id, model.StateLoading, model.StateOffline, model.StateFailed) {
		c.counters.DuplicateConnects.Add(1)
		c.logger.Debug("duplicate connect ignored",
			slog.String("player_id", id.String()),
			slog.String("state", string(c.states.Current(id))))
		return
	}

	c.counters.LoadsStarted.Add(1)
	c.progress.Begin(id, name)

	// Freeze the live session before anything else so the player cannot
	// act, or be acted upon, mid-load.
	c.sched.Submit(func() {
		if live, ok := c.engine.Session(id); ok {
			live.SetFrozen(true)
		}
	})

	go c.runLoad(id, name)
}

func (c *Coordinator) runLoad(id model.PlayerID, name string) {
	defer func() {
		if r := recover(); r != nil {
			c.failLoad(id, name, fmt.Errorf("panic during load: %v", r))
		}
	}()

	logger := c.logger.With(slog.String("player_id", id.String()), slog.String("name", name))

	if !c.repo.Ready() {
		c.failLoad(id, name, model.ErrRepositoryNotReady)
		return
	}

	// A coordination mark left over from a prior session means a subsystem
	// may still be mutating this player's stored state. Wait it out,
	// bounded; force-clear if the subsystem never signals.
	if _, marked := c.coord.Kind(id); marked {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CoordinationWait)
		err := c.coord.Wait(ctx, id)
		cancel()
		if err != nil {
			kind, _ := c.coord.ForceClear(id)
			c.counters.CoordinationTimeouts.Add(1)
			logger.Warn("stale coordination force-cleared before load",
				slog.String("kind", string(kind)))
		}
	}

	c.progress.SetPhase(id, model.PhaseFetchingData)
	rec, err := c.fetch(id, name)
	if err != nil {
		c.failLoad(id, name, err)
		return
	}

	if fixes := rec.Normalize(); len(fixes) > 0 {
		logger.Warn("stored record corrected", slog.Any("fixes", fixes))
	}

	// The player may have disconnected while the fetch was in flight; the
	// fetch itself is not cancelable, so detect it here and clean up.
	var online bool
	c.sched.SubmitWait(func() {
		live, ok := c.engine.Session(id)
		online = ok && live.Connected()
	})
	if !online {
		c.abortLoad(id, logger)
		return
	}

	c.putRecord(rec)

	// Build the finalization chain: each required subsystem coordination
	// wraps the next step, and loading finalizes only after every rejoin
	// hook has signalled completion.
	finalize := func() { c.finalizeLoad(id, rec) }

	if rec.PunishmentState == model.PunishmentProcessed {
		next := finalize
		finalize = func() {
			c.progress.SetPhase(id, model.PhasePunishmentCoordination)
			c.coordinateThen(id, model.ProcessingPunishment,
				c.punishment.HandleRejoin,
				func() {
					rec.PunishmentState = model.PunishmentNone
					next()
				})
		}
	}

	if rec.HasPendingRespawnItems {
		next := finalize
		finalize = func() {
			c.progress.SetPhase(id, model.PhaseDeathCoordination)
			c.coordinateThen(id, model.ProcessingDeath,
				c.death.HandleRespawnRejoin,
				func() {
					rec.HasPendingRespawnItems = false
					next()
				})
		}
	}

	finalize()
}

// fetch retrieves the stored record, creating and synchronously persisting a
// fresh default one on first-ever join. Bounded by the load timeout and the
// shared I/O semaphore.
func (c *Coordinator) fetch(id model.PlayerID, name string) (*model.SessionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
	defer cancel()

	if err := c.ioSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire io slot: %w", err)
	}
	defer c.ioSem.Release(1)

	rec, err := c.repo.FindSession(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		rec = model.NewSessionRecord(id, name, c.clock.Now())
		if err := c.repo.SaveSession(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist new session: %w", err)
		}
		c.logger.Info("new player record created", slog.String("player_id", id.String()))
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	// Display names are mutable on rename; the connect event is authoritative
	rec.DisplayName = name
	return rec, nil
}

// coordinateThen marks the player, hands off to a subsystem rejoin hook on
// its own goroutine, and runs the continuation once the hook completes. If
// the hook errors the continuation still runs; the load must finish.
func (c *Coordinator) coordinateThen(id model.PlayerID, kind model.ProcessingKind, hook func(context.Context, model.PlayerID) error, then func()) {
	if !c.coord.Mark(id, kind) {
		c.logger.Warn("coordination mark already held, skipping hand-off",
			slog.String("player_id", id.String()),
			slog.String("kind", string(kind)))
		then()
		return
	}
	c.counters.CoordinationEvents.Add(1)

	go func() {
		defer c.recoverPanic("coordination_handoff")

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CoordinationEviction)
		defer cancel()

		if err := hook(ctx, id); err != nil {
			c.logger.Error("subsystem rejoin hook failed",
				slog.String("player_id", id.String()),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
		}
		c.coord.Unmark(id, kind)
		then()
	}()
}

// finalizeLoad drains buffered settings, applies the record to the live
// session on the scheduler context, lifts the restricted presentation, and
// transitions the player to ready.
func (c *Coordinator) finalizeLoad(id model.PlayerID, rec *model.SessionRecord) {
	logger := c.logger.With(slog.String("player_id", id.String()), slog.String("name", rec.DisplayName))

	c.progress.SetPhase(id, model.PhaseApplyingData)

	if pending := c.settings.Drain(id); len(pending) > 0 {
		for name, enabled := range pending {
			rec.SetToggle(name, enabled)
			c.counters.SettingsApplied.Add(1)
		}
		logger.Debug("buffered settings applied", slog.Int("count", len(pending)))
	}

	var applyErr error
	c.sched.SubmitWait(func() {
		live, ok := c.engine.Session(id)
		if !ok || !live.Connected() {
			applyErr = model.ErrPlayerOffline
			return
		}
		rec.InventoryBeingApplied = true
		applyErr = live.Apply(rec)
		rec.InventoryBeingApplied = false
		if applyErr != nil {
			return
		}
		live.SetFrozen(false)
		for name, enabled := range rec.Toggles {
			live.ApplyToggle(name, enabled)
		}
	})

	if errors.Is(applyErr, model.ErrPlayerOffline) {
		c.abortLoad(id, logger)
		return
	}
	if applyErr != nil {
		c.failLoad(id, rec.DisplayName, fmt.Errorf("apply session: %w", applyErr))
		return
	}

	c.ranks.SetRank(id, rec.Rank)
	c.tags.SetTag(id, rec.ChatTag)

	if !c.states.Transition(id, model.StateReady, model.StateLoading) {
		// The stuck-loading monitor already failed this load and rebuilt
		// the session; do not finalize a second time.
		logger.Warn("load finalization lost race with failure handling")
		c.progress.Remove(id)
		return
	}

	c.progress.SetPhase(id, model.PhaseCompleted)
	c.progress.Remove(id)
	c.counters.LoadsSucceeded.Add(1)
	logger.Info("session loaded")

	c.announceJoin(rec.DisplayName)
}

// abortLoad cleans up after a player who disconnected mid-load
func (c *Coordinator) abortLoad(id model.PlayerID, logger *slog.Logger) {
	c.removeRecord(id)
	c.progress.Remove(id)
	c.states.Set(id, model.StateOffline)
	logger.Info("load aborted, player disconnected mid-load")
}

// failLoad converts any loading failure into a state transition plus
// synchronous emergency recovery. Exactly one failure handler wins; a loader
// and the stuck-loading monitor can both arrive here for the same player.
func (c *Coordinator) failLoad(id model.PlayerID, name string, cause error) {
	if !c.states.Transition(id, model.StateFailed, model.StateLoading) {
		c.logger.Debug("load failure already handled", slog.String("player_id", id.String()))
		return
	}

	c.counters.LoadsFailed.Add(1)
	c.progress.SetPhase(id, model.PhaseFailed)
	c.logger.Error("session loading failed",
		slog.String("player_id", id.String()),
		slog.String("name", name),
		slog.String("error", cause.Error()))

	c.emergencyRecover(id, name)
}

// emergencyRecover synchronously re-seeds a minimal default session so the
// player keeps playing instead of being stuck or disconnected.
func (c *Coordinator) emergencyRecover(id model.PlayerID, name string) {
	c.counters.EmergencyRecoveries.Add(1)

	rec := model.NewSessionRecord(id, name, c.clock.Now())
	c.putRecord(rec)

	var online bool
	c.sched.SubmitWait(func() {
		live, ok := c.engine.Session(id)
		if !ok || !live.Connected() {
			return
		}
		online = true
		_ = live.Apply(rec)
		live.SetFrozen(false)
		live.Message("Your data could not be loaded, so a fresh profile was restored. Staff have been notified.")
	})

	if !online {
		c.abortLoad(id, c.logger.With(slog.String("player_id", id.String())))
		return
	}

	c.states.Transition(id, model.StateReady, model.StateFailed)
	c.progress.Remove(id)
	c.logger.Warn("emergency recovery complete",
		slog.String("player_id", id.String()),
		slog.String("name", name))

	snap := rec.Clone()
	go func() {
		defer c.recoverPanic("recovery_persist")
		_ = c.persistWithRetry(snap)
	}()
}

// announceJoin emits a join notification scaled to current population:
// busy servers skip the broadcast entirely.
func (c *Coordinator) announceJoin(name string) {
	pop := c.engine.Population()
	if pop > c.cfg.QuietJoinPopulation {
		return
	}
	c.engine.Announce(fmt.Sprintf("%s joined the game", name))
}
