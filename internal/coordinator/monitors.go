package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/emberhollow/sessiond/internal/model"
)

// Start launches the background monitors: the stuck-loading scan, the
// coordination-timeout eviction, the abandoned-settings sweep, the periodic
// auto-save, and the guaranteed-inventory sweep.
func (c *Coordinator) Start() {
	c.spawnLoop("progress_scan", c.cfg.ProgressScanInterval, c.progressScanCycle)
	c.spawnLoop("coordination_eviction", c.cfg.ProgressScanInterval*5, c.coordinationEvictionCycle)
	c.spawnLoop("settings_sweep", time.Minute, c.settingsSweepCycle)
	c.spawnLoop("auto_save", c.cfg.AutoSaveInterval, c.autoSaveCycle)
	c.spawnLoop("inventory_sweep", c.cfg.InventorySweepInterval, c.inventorySweepCycle)
	c.logger.Info("coordinator started")
}

// Shutdown stops the monitors and saves every remaining connected player,
// bounded by the configured shutdown timeout (or the caller's context,
// whichever is tighter).
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.wg.Wait()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	err := c.SaveAll(ctx)
	c.logger.Info("coordinator stopped")
	return err
}

func (c *Coordinator) spawnLoop(name string, interval time.Duration, cycle func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				func() {
					defer c.recoverPanic(name)
					cycle()
				}()
			case <-c.done:
				return
			}
		}
	}()
}

// progressScanCycle routes stuck loads to failure handling. The threshold is
// phase-dependent: coordination phases get longer because an external
// subsystem is legitimately holding the load open.
func (c *Coordinator) progressScanCycle() {
	for _, p := range c.progress.Stale(c.cfg.ProgressTimeout, c.cfg.ProgressCoordinationTimeout) {
		c.logger.Error("loading stuck, forcing failure",
			slog.String("player_id", p.PlayerID.String()),
			slog.String("name", p.DisplayName),
			slog.String("phase", string(p.Phase)))

		if p.Phase.Coordination() {
			if kind, ok := c.coord.ForceClear(p.PlayerID); ok {
				c.counters.CoordinationTimeouts.Add(1)
				c.logger.Warn("coordination force-cleared for stuck load",
					slog.String("player_id", p.PlayerID.String()),
					slog.String("kind", string(kind)))
			}
		}

		c.failLoad(p.PlayerID, p.DisplayName, errLoadingStuck)
	}
}

// coordinationEvictionCycle evicts coordination marks whose subsystem never
// signalled completion, so pipelines proceed rather than hang forever.
func (c *Coordinator) coordinationEvictionCycle() {
	for _, ev := range c.coord.EvictOlderThan(c.cfg.CoordinationEviction) {
		c.counters.CoordinationTimeouts.Add(1)
		c.logger.Warn("coordination timed out, mark evicted",
			slog.String("player_id", ev.id.String()),
			slog.String("kind", string(ev.kind)),
			slog.Duration("age", ev.age))

		// A player left parked in a subsystem state returns to ready
		c.states.Transition(ev.id, model.StateReady,
			model.StateDeathProcessing, model.StatePunishmentProcessing)
	}
}

// settingsSweepCycle drops buffered toggles whose owner never materialized
func (c *Coordinator) settingsSweepCycle() {
	dropped := c.settings.EvictAbandoned(c.cfg.SettingsEviction, func(id model.PlayerID) bool {
		return c.hasRecord(id) || c.states.Current(id) != model.StateOffline
	})
	if dropped > 0 {
		c.counters.SettingsEvicted.Add(uint64(dropped))
		c.logger.Info("abandoned buffered settings evicted", slog.Int("count", dropped))
	}
}
