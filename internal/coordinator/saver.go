package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/emberhollow/sessiond/internal/model"
)

// HandleDisconnect starts the guaranteed-save pipeline for a player who
// disconnected. The latest live state is persisted at least once, with an
// explicit critical log if every attempt is exhausted.
func (c *Coordinator) HandleDisconnect(id model.PlayerID) {
	switch c.states.Current(id) {
	case model.StateOffline:
		c.logger.Debug("disconnect for offline player ignored", slog.String("player_id", id.String()))
		return
	case model.StateLoading:
		// The fetch is not cancelable; the loader notices the player is
		// gone at its next live-session check and cleans up itself.
		c.logger.Info("disconnect during load, loader will clean up",
			slog.String("player_id", id.String()))
		return
	}

	go func() {
		defer c.recoverPanic("quit_save")
		c.runQuit(id)
	}()
}

func (c *Coordinator) runQuit(id model.PlayerID) {
	logger := c.logger.With(slog.String("player_id", id.String()))
	rec, ok := c.record(id)

	// A player owned by the Death or Punishment subsystem is persisted by
	// that subsystem's own quit handling; saving here would race its
	// in-flight mutations. Skip-and-count, never skip-and-fail.
	if kind, marked := c.coord.Kind(id); marked {
		c.counters.SavesSkippedCoordination.Add(1)
		logger.Debug("quit save skipped, subsystem owns player",
			slog.String("kind", string(kind)))
		c.finishQuit(id, rec)
		return
	}

	if !ok {
		c.finishQuit(id, nil)
		return
	}

	// Force-capture live state unconditionally: at disconnect there is no
	// later save to defer to. Every record mutation happens on the scheduler
	// context, where concurrent toggle and session writes are serialized;
	// persistence works from a detached clone taken there.
	var snap *model.SessionRecord
	c.sched.SubmitWait(func() {
		if live, lok := c.engine.Session(id); lok {
			live.CaptureInto(rec)
		}
		for name, enabled := range c.settings.Drain(id) {
			rec.SetToggle(name, enabled)
			c.counters.SettingsApplied.Add(1)
		}
		rec.PunishmentState = model.PunishmentNone
		now := c.clock.Now()
		rec.InventorySavedAt = now
		rec.UpdatedAt = now
		snap = rec.Clone()
	})

	// Registry removal happens once persistence is initiated; the snapshot
	// lives on until the save completes.
	c.finishQuit(id, rec)
	_ = c.persistWithRetry(snap)
}

// finishQuit removes the player from the live registries and emits the quit
// notification.
func (c *Coordinator) finishQuit(id model.PlayerID, rec *model.SessionRecord) {
	c.removeRecord(id)
	c.progress.Remove(id)
	c.states.Set(id, model.StateOffline)
	c.ranks.RemoveRank(id)
	c.tags.RemoveTag(id)

	if rec != nil {
		c.announceQuit(rec.DisplayName)
	}
	c.logger.Info("player session closed", slog.String("player_id", id.String()))
}

func (c *Coordinator) announceQuit(name string) {
	if c.engine.Population() > c.cfg.QuietJoinPopulation {
		return
	}
	c.engine.Announce(fmt.Sprintf("%s left the game", name))
}

// persistWithRetry saves a record with bounded retries and exponential
// backoff. On exhaustion it logs at the highest severity and schedules one
// final best-effort asynchronous attempt, so it never blocks shutdown
// indefinitely but also never fails silently.
func (c *Coordinator) persistWithRetry(rec *model.SessionRecord) error {
	logger := c.logger.With(slog.String("player_id", rec.ID.String()))

	attempt := func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SaveTimeout)
		defer cancel()

		if err := c.ioSem.Acquire(ctx, 1); err != nil {
			return struct{}{}, fmt.Errorf("acquire io slot: %w", err)
		}
		defer c.ioSem.Release(1)

		return struct{}{}, c.repo.SaveSession(ctx, rec)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.SaveBackoffInitial

	_, err := backoff.Retry(context.Background(), attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.SaveAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("save attempt failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", next))
		}))
	if err == nil {
		c.counters.SavesSucceeded.Add(1)
		return nil
	}

	c.counters.SavesFailed.Add(1)
	logger.Error("CRITICAL: all save attempts exhausted, data loss possible",
		slog.String("name", rec.DisplayName),
		slog.String("error", err.Error()))

	go func() {
		defer c.recoverPanic("last_resort_save")
		time.Sleep(c.cfg.SaveBackoffInitial * 10)

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SaveTimeout)
		defer cancel()
		if rerr := c.repo.SaveSession(ctx, rec); rerr != nil {
			logger.Error("last-resort save failed", slog.String("error", rerr.Error()))
		} else {
			c.counters.SavesSucceeded.Add(1)
			logger.Info("last-resort save succeeded")
		}
	}()

	return err
}

// SaveAll runs the quit routine for every remaining player, bounded by the
// context. Used at process shutdown; when the bound expires, shutdown
// proceeds regardless and the stragglers are left to their last-resort
// retries.
func (c *Coordinator) SaveAll(ctx context.Context) error {
	ids := c.recordIDs()
	if len(ids) == 0 {
		return nil
	}
	c.logger.Info("saving all connected players", slog.Int("count", len(ids)))

	var g errgroup.Group
	g.SetLimit(int(c.cfg.MaxConcurrentIO))
	for _, id := range ids {
		g.Go(func() error {
			defer c.recoverPanic("shutdown_save")
			c.runQuit(id)
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		c.logger.Info("all players saved")
		return nil
	case <-ctx.Done():
		c.logger.Error("shutdown save timed out, proceeding anyway",
			slog.Int("players", len(ids)))
		return ctx.Err()
	}
}

// autoSaveCycle persists a bounded random sample of connected players.
// Players under subsystem coordination are skipped; a stale processed
// punishment state with no active combat logout is corrected along the way.
func (c *Coordinator) autoSaveCycle() {
	var eligible []model.PlayerID
	for _, id := range c.recordIDs() {
		if c.states.Current(id) != model.StateReady {
			continue
		}
		if _, marked := c.coord.Kind(id); marked {
			continue
		}
		eligible = append(eligible, id)
	}

	c.random.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > c.cfg.AutoSaveBatch {
		eligible = eligible[:c.cfg.AutoSaveBatch]
	}

	for _, id := range eligible {
		if snap, ok := c.captureSnapshot(id); ok {
			_ = c.persistWithRetry(snap)
		}
	}
}

// inventorySweepCycle force-persists any session whose inventory has not
// been saved within the staleness bound, independent of the auto-save
// cadence, to bound data loss on a crash.
func (c *Coordinator) inventorySweepCycle() {
	now := c.clock.Now()
	for _, id := range c.recordIDs() {
		if c.states.Current(id) != model.StateReady {
			continue
		}
		if _, marked := c.coord.Kind(id); marked {
			continue
		}
		rec, ok := c.record(id)
		if !ok || now.Sub(rec.InventorySavedAt) <= c.cfg.InventorySaveMaxAge {
			continue
		}
		if snap, ok := c.captureSnapshot(id); ok {
			_ = c.persistWithRetry(snap)
		}
	}
}

// captureSnapshot force-captures live state into the player's record on the
// scheduler context and returns a detached copy safe to persist off it.
func (c *Coordinator) captureSnapshot(id model.PlayerID) (*model.SessionRecord, bool) {
	rec, ok := c.record(id)
	if !ok {
		return nil, false
	}

	var snap *model.SessionRecord
	c.sched.SubmitWait(func() {
		if live, lok := c.engine.Session(id); lok {
			live.CaptureInto(rec)
		}
		if rec.PunishmentState == model.PunishmentProcessed && !c.punishment.IsCombatLoggingOut(id) {
			// Stale marker with no active punishment session
			rec.PunishmentState = model.PunishmentNone
		}
		now := c.clock.Now()
		rec.InventorySavedAt = now
		rec.UpdatedAt = now
		snap = rec.Clone()
	})
	return snap, snap != nil
}
