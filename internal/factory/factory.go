// Package factory wires the application's components together.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emberhollow/sessiond/internal/coordinator"
	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/dependencies/random"
	"github.com/emberhollow/sessiond/internal/engine"
	"github.com/emberhollow/sessiond/internal/storage"
	"github.com/emberhollow/sessiond/internal/storage/memory"
	redisstorage "github.com/emberhollow/sessiond/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Repository storage.Repository

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Engine bindings
	Engine     engine.Engine
	Death      engine.DeathSubsystem
	Punishment engine.PunishmentSubsystem
	Ranks      engine.RankRegistry
	Tags       engine.TagRegistry
	Scheduler  *engine.LoopScheduler

	// Core
	Coordinator *coordinator.Coordinator
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the repository backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// CoordinatorConfig holds coordinator tunables (optional)
	// If zero value, defaults to coordinator.DefaultConfig()
	CoordinatorConfig coordinator.Config
	// Engine is the live game engine binding (optional)
	// If nil, a NopEngine is used
	Engine engine.Engine
	// Death is the death subsystem binding (optional)
	Death engine.DeathSubsystem
	// Punishment is the punishment subsystem binding (optional)
	Punishment engine.PunishmentSubsystem
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var repo storage.Repository
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		repo = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisRepo, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		repo = redisRepo
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	coordCfg := cfg.CoordinatorConfig
	if coordCfg.SaveAttempts == 0 {
		coordCfg = coordinator.DefaultConfig()
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.NewNopEngine(logger)
	}
	death := cfg.Death
	if death == nil {
		death = engine.NopDeathSubsystem{}
	}
	punishment := cfg.Punishment
	if punishment == nil {
		punishment = engine.NopPunishmentSubsystem{}
	}

	clk := clock.New()
	rnd := random.New()
	sched := engine.NewLoopScheduler(logger)
	ranks := engine.NewMapRankRegistry()
	tags := engine.NewMapTagRegistry()

	coord := coordinator.New(coordinator.Deps{
		Repository: repo,
		Engine:     eng,
		Death:      death,
		Punishment: punishment,
		Ranks:      ranks,
		Tags:       tags,
		Scheduler:  sched,
		Clock:      clk,
		Random:     rnd,
		Logger:     logger,
	}, coordCfg)

	return &App{
		Repository:  repo,
		Clock:       clk,
		Random:      rnd,
		Engine:      eng,
		Death:       death,
		Punishment:  punishment,
		Ranks:       ranks,
		Tags:        tags,
		Scheduler:   sched,
		Coordinator: coord,
	}, nil
}

// Initializer is one named startup step
type Initializer struct {
	Name string
	Init func(ctx context.Context) error
}

// RunInitializers executes startup steps in order, aggregating failures so a
// broken step never hides the ones after it.
func RunInitializers(ctx context.Context, logger *slog.Logger, steps []Initializer) error {
	var errs []error
	for _, step := range steps {
		if err := step.Init(ctx); err != nil {
			logger.Error("initializer failed",
				slog.String("name", step.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		logger.Info("initializer completed", slog.String("name", step.Name))
	}
	return errors.Join(errs...)
}

// Initializers returns the application's ordered startup steps
func (a *App) Initializers() []Initializer {
	return []Initializer{
		{
			Name: "scheduler",
			Init: func(ctx context.Context) error {
				go a.Scheduler.Run()
				return nil
			},
		},
		{
			Name: "repository",
			Init: func(ctx context.Context) error {
				if !a.Repository.Ready() {
					return errors.New("repository handshake failed")
				}
				return nil
			},
		},
		{
			Name: "coordinator",
			Init: func(ctx context.Context) error {
				a.Coordinator.Start()
				return nil
			},
		},
	}
}
