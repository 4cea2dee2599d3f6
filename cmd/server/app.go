package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vytor/ceplayer/internal/api"
	"github.com/vytor/ceplayer/internal/config"
	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/db"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/repository"
	"github.com/vytor/ceplayer/internal/repository/file"
	"github.com/vytor/ceplayer/internal/repository/gormstore"
	"github.com/vytor/ceplayer/internal/repository/memory"
	"github.com/vytor/ceplayer/internal/repository/sqlite"
	"github.com/vytor/ceplayer/internal/services"
)

// loadConfig reads and validates configuration and installs the default logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithColors(cfg.LogFormat != string(logger.FormatJSON)),
	)
	logger.SetDefault(log)
	return cfg, nil
}

// openStore opens the configured backend and the readiness probes that go with it.
func openStore(cfg config.Config) (repository.Store, []api.ReadyCheck, error) {
	log := logger.Default()
	log.Info("opening %s store", cfg.StoreBackend)

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		checks := []api.ReadyCheck{{Name: "database", Check: database.PingContext}}
		return sqlite.NewStore(database.DB), checks, nil

	case config.BackendGorm:
		store, err := gormstore.Open(gormstore.Config{DatabaseURL: cfg.DatabaseURL, Path: cfg.DBPath})
		if err != nil {
			return nil, nil, fmt.Errorf("open gorm store: %w", err)
		}
		checks := []api.ReadyCheck{{Name: "database", Check: func(context.Context) error { return store.Ping() }}}
		return store, checks, nil

	case config.BackendFile:
		checks := []api.ReadyCheck{{Name: "state directory", Check: func(context.Context) error {
			_, err := os.Stat(cfg.StateDir)
			if os.IsNotExist(err) {
				// created on first write
				return nil
			}
			return err
		}}}
		return file.NewStore(cfg.StateDir), checks, nil

	case config.BackendMemory:
		log.Warn("memory store selected: progress is lost on restart")
		return memory.NewStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// loadOutline reads the course outline, warning when it disagrees with HOUR_COUNT.
func loadOutline(cfg config.Config) (*content.Outline, error) {
	log := logger.Default()
	path := cfg.CourseFile
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("course file %s not found, using the built-in outline", path)
		path = ""
	}
	outline, err := content.LoadOutline(path)
	if err != nil {
		return nil, err
	}
	if outline.HourCount() != cfg.HourCount {
		log.Warn("course outline has %d hours but HOUR_COUNT is %d; using the outline", outline.HourCount(), cfg.HourCount)
	}
	return outline, nil
}

func migrate(ctx context.Context, cfg config.Config, rollback bool) error {
	log := logger.FromContext(ctx)

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		applied, err := database.AppliedMigrations(ctx)
		if err != nil {
			return err
		}
		log.Info("sqlite schema at %s: %d migrations applied %v", cfg.DBPath, len(applied), applied)
		if rollback {
			return fmt.Errorf("rollback is only supported by the gorm backend")
		}
		return nil

	case config.BackendGorm:
		store, err := gormstore.Open(gormstore.Config{DatabaseURL: cfg.DatabaseURL, Path: cfg.DBPath})
		if err != nil {
			return err
		}
		defer store.Close()
		if rollback {
			if err := store.RollbackLast(); err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			log.Info("rolled back the most recent migration")
			return nil
		}
		log.Info("gorm schema is up to date")
		return nil
	}
	log.Info("%s store has no schema to migrate", cfg.StoreBackend)
	return nil
}

func resetProgress(ctx context.Context, cfg config.Config, learnerID string) error {
	store, _, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	outline, err := loadOutline(cfg)
	if err != nil {
		return err
	}
	progress := services.NewProgressService(store.Ledgers(), cfg.Namespace+"/"+learnerID, services.ProgressConfig{
		HourCount:      outline.HourCount(),
		MinimumSeconds: cfg.MinimumSecondsPerHour,
	})
	if err := progress.Reset(ctx); err != nil {
		return err
	}
	logger.Default().Info("progress reset for %s", progress.Namespace())
	return nil
}
