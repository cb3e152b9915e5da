// Package coordinator manages the lifecycle of connected players' session
// state: loading persisted records on connect, applying them safely to live
// sessions, coordinating with the Death and Punishment subsystems so that no
// two parties mutate the same record concurrently, and guaranteeing durable
// persistence on every disconnect and on shutdown.
package coordinator

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/dependencies/random"
	"github.com/emberhollow/sessiond/internal/engine"
	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage"
)

// Config holds tunable parameters for the coordinator
type Config struct {
	// LoadTimeout bounds the repository fetch during loading
	LoadTimeout time.Duration
	// SaveTimeout bounds each individual save attempt
	SaveTimeout time.Duration
	// SaveAttempts is the number of tries before a save is declared failed
	SaveAttempts int
	// SaveBackoffInitial is the delay before the first retry; subsequent
	// retries back off exponentially
	SaveBackoffInitial time.Duration

	// CoordinationWait bounds how long the loader waits out a stale
	// coordination mark left over from a prior session
	CoordinationWait time.Duration
	// CoordinationEviction is the age at which the monitor force-clears a
	// coordination mark whose subsystem never signalled completion
	CoordinationEviction time.Duration

	// ProgressScanInterval is how often the stuck-loading monitor runs
	ProgressScanInterval time.Duration
	// ProgressTimeout is the stuck threshold for normal loading phases
	ProgressTimeout time.Duration
	// ProgressCoordinationTimeout is the stuck threshold while an external
	// subsystem legitimately holds the load open
	ProgressCoordinationTimeout time.Duration

	// AutoSaveInterval is the cadence of the periodic auto-save
	AutoSaveInterval time.Duration
	// AutoSaveBatch caps how many players each auto-save cycle persists
	AutoSaveBatch int

	// InventorySweepInterval is the cadence of the guaranteed-inventory sweep
	InventorySweepInterval time.Duration
	// InventorySaveMaxAge is the inventory staleness that triggers a forced save
	InventorySaveMaxAge time.Duration

	// SettingsEviction is the age at which abandoned settings-buffer
	// entries are dropped
	SettingsEviction time.Duration

	// ShutdownTimeout bounds the save-everyone pass at process shutdown
	ShutdownTimeout time.Duration

	// MaxConcurrentIO caps concurrent repository operations
	MaxConcurrentIO int64

	// QuietJoinPopulation suppresses join/quit broadcasts above this
	// player count
	QuietJoinPopulation int
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		LoadTimeout:                 10 * time.Second,
		SaveTimeout:                 15 * time.Second,
		SaveAttempts:                3,
		SaveBackoffInitial:          100 * time.Millisecond,
		CoordinationWait:            15 * time.Second,
		CoordinationEviction:        60 * time.Second,
		ProgressScanInterval:        time.Second,
		ProgressTimeout:             30 * time.Second,
		ProgressCoordinationTimeout: 60 * time.Second,
		AutoSaveInterval:            5 * time.Minute,
		AutoSaveBatch:               10,
		InventorySweepInterval:      5 * time.Second,
		InventorySaveMaxAge:         30 * time.Second,
		SettingsEviction:            10 * time.Minute,
		ShutdownTimeout:             30 * time.Second,
		MaxConcurrentIO:             8,
		QuietJoinPopulation:         100,
	}
}

// Deps are the coordinator's injected collaborators
type Deps struct {
	Repository storage.Repository
	Engine     engine.Engine
	Death      engine.DeathSubsystem
	Punishment engine.PunishmentSubsystem
	Ranks      engine.RankRegistry
	Tags       engine.TagRegistry
	Scheduler  engine.Scheduler
	Clock      clock.Clock
	Random     random.Random
	Logger     *slog.Logger
}

// Coordinator is the per-player session lifecycle coordinator
type Coordinator struct {
	repo       storage.Repository
	engine     engine.Engine
	death      engine.DeathSubsystem
	punishment engine.PunishmentSubsystem
	ranks      engine.RankRegistry
	tags       engine.TagRegistry
	sched      engine.Scheduler
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
	cfg        Config

	states   *stateStore
	coord    *coordinationRegistry
	progress *progressTracker
	settings *settingsBuffer
	counters Counters

	// records holds the session record for every connected or mid-load
	// player; record contents are only mutated on the scheduler context.
	mu      sync.RWMutex
	records map[model.PlayerID]*model.SessionRecord

	ioSem   *semaphore.Weighted
	done    chan struct{}
	wg      sync.WaitGroup
	closing atomic.Bool
}

// New creates a coordinator. Call Start to launch the background monitors.
func New(deps Deps, cfg Config) *Coordinator {
	return &Coordinator{
		repo:       deps.Repository,
		engine:     deps.Engine,
		death:      deps.Death,
		punishment: deps.Punishment,
		ranks:      deps.Ranks,
		tags:       deps.Tags,
		sched:      deps.Scheduler,
		clock:      deps.Clock,
		random:     deps.Random,
		logger:     deps.Logger.With(slog.String("component", "coordinator")),
		cfg:        cfg,
		states:     newStateStore(),
		coord:      newCoordinationRegistry(deps.Clock),
		progress:   newProgressTracker(deps.Clock),
		settings:   newSettingsBuffer(deps.Clock),
		records:    make(map[model.PlayerID]*model.SessionRecord),
		ioSem:      semaphore.NewWeighted(cfg.MaxConcurrentIO),
		done:       make(chan struct{}),
	}
}

// Record registry helpers

func (c *Coordinator) record(id model.PlayerID) (*model.SessionRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

func (c *Coordinator) putRecord(rec *model.SessionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.ID] = rec
}

func (c *Coordinator) removeRecord(id model.PlayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

func (c *Coordinator) hasRecord(id model.PlayerID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[id]
	return ok
}

func (c *Coordinator) recordIDs() []model.PlayerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.PlayerID, 0, len(c.records))
	for id := range c.records {
		out = append(out, id)
	}
	return out
}

// Query API

// IsPlayerReady reports whether the player has a fully loaded session
func (c *Coordinator) IsPlayerReady(id model.PlayerID) bool {
	return c.states.Current(id) == model.StateReady
}

// PlayerState returns the player's lifecycle state
func (c *Coordinator) PlayerState(id model.PlayerID) model.PlayerState {
	return c.states.Current(id)
}

// LoadingPhase returns the player's current loading phase, if a load is in flight
func (c *Coordinator) LoadingPhase(id model.PlayerID) (model.LoadPhase, bool) {
	p, ok := c.progress.Get(id)
	if !ok {
		return "", false
	}
	return p.Phase, true
}

// IsPlayerInDeathProcessing reports whether the Death subsystem owns the player
func (c *Coordinator) IsPlayerInDeathProcessing(id model.PlayerID) bool {
	return c.coord.IsMarked(id, model.ProcessingDeath)
}

// IsPlayerInCombatLogoutProcessing reports whether the Punishment subsystem
// owns the player
func (c *Coordinator) IsPlayerInCombatLogoutProcessing(id model.PlayerID) bool {
	return c.coord.IsMarked(id, model.ProcessingPunishment)
}

// Subsystem coordination hand-off. The owning subsystem brackets its work
// with Begin/Finish; Begin fails if the player is not ready or is already
// owned, which is what prevents two subsystems from mutating one record.

// BeginDeathProcessing marks a ready player as owned by the Death subsystem
func (c *Coordinator) BeginDeathProcessing(id model.PlayerID) bool {
	return c.beginProcessing(id, model.StateDeathProcessing, model.ProcessingDeath)
}

// FinishDeathProcessing returns a player from Death processing to ready
func (c *Coordinator) FinishDeathProcessing(id model.PlayerID) {
	c.finishProcessing(id, model.StateDeathProcessing, model.ProcessingDeath)
}

// BeginCombatLogoutProcessing marks a ready player as owned by the
// Punishment subsystem
func (c *Coordinator) BeginCombatLogoutProcessing(id model.PlayerID) bool {
	return c.beginProcessing(id, model.StatePunishmentProcessing, model.ProcessingPunishment)
}

// FinishCombatLogoutProcessing returns a player from Punishment processing
// to ready
func (c *Coordinator) FinishCombatLogoutProcessing(id model.PlayerID) {
	c.finishProcessing(id, model.StatePunishmentProcessing, model.ProcessingPunishment)
}

func (c *Coordinator) beginProcessing(id model.PlayerID, st model.PlayerState, kind model.ProcessingKind) bool {
	if !c.states.Transition(id, st, model.StateReady) {
		return false
	}
	if !c.coord.Mark(id, kind) {
		c.states.Transition(id, model.StateReady, st)
		return false
	}
	c.counters.CoordinationEvents.Add(1)
	c.logger.Debug("subsystem processing started",
		slog.String("player_id", id.String()),
		slog.String("kind", string(kind)))
	return true
}

func (c *Coordinator) finishProcessing(id model.PlayerID, st model.PlayerState, kind model.ProcessingKind) {
	c.coord.Unmark(id, kind)
	c.states.Transition(id, model.StateReady, st)
}

// WithSession applies a mutation to a player's record on the scheduler
// context, only if the player is ready and not under subsystem coordination,
// optionally persisting afterwards. The returned channel yields whether the
// mutation was applied (and, when requested, persisted).
func (c *Coordinator) WithSession(id model.PlayerID, mutate func(*model.SessionRecord), persist bool) <-chan bool {
	ch := make(chan bool, 1)
	go func() {
		defer c.recoverPanic("with_session")

		if _, marked := c.coord.Kind(id); marked {
			ch <- false
			return
		}
		rec, ok := c.record(id)
		if !ok || c.states.Current(id) != model.StateReady {
			ch <- false
			return
		}

		var snap *model.SessionRecord
		c.sched.SubmitWait(func() {
			mutate(rec)
			rec.UpdatedAt = c.clock.Now()
			if persist {
				snap = rec.Clone()
			}
		})

		if persist {
			if err := c.persistWithRetry(snap); err != nil {
				ch <- false
				return
			}
		}
		ch <- true
	}()
	return ch
}

// SetToggle requests a preference change. Ready, uncoordinated players get
// it applied and persisted immediately; players mid-load or under
// coordination get it buffered for whichever pipeline reaches them first.
func (c *Coordinator) SetToggle(id model.PlayerID, name string, enabled bool) error {
	st := c.states.Current(id)
	_, marked := c.coord.Kind(id)

	switch {
	case st == model.StateOffline:
		return model.ErrPlayerOffline

	case st == model.StateReady && !marked:
		rec, ok := c.record(id)
		if !ok {
			return model.ErrPlayerOffline
		}
		c.sched.Submit(func() {
			rec.SetToggle(name, enabled)
			rec.UpdatedAt = c.clock.Now()
			if live, lok := c.engine.Session(id); lok {
				live.ApplyToggle(name, enabled)
			}
			snap := rec.Clone()
			go func() {
				defer c.recoverPanic("toggle_persist")
				_ = c.persistWithRetry(snap)
			}()
		})
		return nil

	default:
		c.settings.Put(id, name, enabled)
		c.counters.SettingsBuffered.Add(1)
		c.logger.Debug("toggle buffered",
			slog.String("player_id", id.String()),
			slog.String("toggle", name),
			slog.String("state", string(st)))
		return nil
	}
}

func (c *Coordinator) recoverPanic(where string) {
	if r := recover(); r != nil {
		c.logger.Error("panic recovered",
			slog.String("where", where),
			slog.Any("panic", r))
	}
}

func (c *Coordinator) shuttingDown() bool {
	return c.closing.Load()
}
