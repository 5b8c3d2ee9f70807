package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/api"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/profile"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/repository"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg, "idphoto-api")
	slog.SetDefault(logger)
	auditLogger := audit.NewSlogLogger(logger)

	logger.Info("starting ID photo API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("profile_source", cfg.ProfileSource),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Profile source
	deps := &api.Dependencies{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		DisableDocs:     cfg.IsProduction(),
	}

	var source profile.Source
	switch cfg.ProfileSource {
	case "database":
		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		source = repository.NewProfileRepository(pool)
		deps.DB = pool
	default:
		source = profile.NewFileSource(cfg.ProfilePath)
	}

	store := profile.NewStore(source, logger, auditLogger)
	if err := store.Reload(ctx); err != nil {
		logger.Warn("initial profile load failed, using defaults", slog.Any("error", err))
	}

	if cfg.ProfileSource == "file" && cfg.ProfileWatch {
		watcher := profile.NewWatcher(store, cfg.ProfilePath, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("profile watcher stopped", slog.Any("error", err))
			}
		}()
	}

	// Pipeline
	photos, err := service.NewPhotoServiceFromConfig(ctx, cfg, store, logger, auditLogger)
	if err != nil {
		return fmt.Errorf("failed to create photo service: %w", err)
	}
	deps.Photos = photos
	deps.Profiles = store

	// Setup router
	router := api.NewRouter(logger, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
