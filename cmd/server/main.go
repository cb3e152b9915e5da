package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberhollow/sessiond/internal/api"
	"github.com/emberhollow/sessiond/internal/config"
	"github.com/emberhollow/sessiond/internal/coordinator"
	"github.com/emberhollow/sessiond/internal/factory"
	redisstorage "github.com/emberhollow/sessiond/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
	}

	if cfg.StorageType == factory.StorageTypeRedis {
		if cfg.RedisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	factoryCfg.CoordinatorConfig = coordinatorConfig(cfg)

	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := factory.RunInitializers(context.Background(), logger, app.Initializers()); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Diagnostic API
	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Coordinator: app.Coordinator,
		Repository:  app.Repository,
	})

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.ListenAddr
	server := api.NewServer(router, serverCfg, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		// Save every connected player before the process exits
		if err := app.Coordinator.Shutdown(context.Background()); err != nil {
			logger.Error("coordinator shutdown incomplete", slog.String("error", err.Error()))
		}
		app.Scheduler.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// coordinatorConfig overlays environment knobs onto the coordinator defaults
func coordinatorConfig(cfg config.Config) coordinator.Config {
	out := coordinator.DefaultConfig()
	out.AutoSaveInterval = cfg.AutoSaveInterval
	out.LoadTimeout = cfg.LoadTimeout
	out.SaveTimeout = cfg.SaveTimeout
	out.MaxConcurrentIO = cfg.MaxConcurrentIO
	out.ShutdownTimeout = cfg.ShutdownTimeout
	return out
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
