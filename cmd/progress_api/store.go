package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/interview-progress/internal/config"
	"github.com/jonathan/interview-progress/internal/db"
	"github.com/jonathan/interview-progress/internal/progress"
)

// closableStore is a progress store that owns a connection.
type closableStore interface {
	progress.Store
	Close()
}

// loadConfigs reads the progress and store configuration from the
// environment and overlays the optional JSON file at path.
func loadConfigs(path string) (*config.ProgressConfig, *config.StoreConfig, error) {
	progressCfg, err := config.NewProgressConfig()
	if err != nil {
		return nil, nil, err
	}
	storeCfg, err := config.NewStoreConfig()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return progressCfg, storeCfg, nil
	}

	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if err := fileCfg.Apply(progressCfg, storeCfg); err != nil {
		return nil, nil, err
	}
	return progressCfg, storeCfg, nil
}

// openStore connects to the configured backend and makes sure its schema exists.
func openStore(ctx context.Context, cfg *config.StoreConfig) (closableStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return database, nil
	case config.DriverSQLite:
		database, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return database, nil
	case config.DriverMemory:
		log.Println("[store] using in-memory store; progress is lost on restart")
		return db.NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// serviceConfig converts the loaded configuration into service settings.
func serviceConfig(cfg *config.ProgressConfig) progress.Config {
	return progress.Config{
		Thresholds: progress.Thresholds{
			MinQuestions: cfg.MinQuestions,
			MinAccuracy:  cfg.MinAccuracy,
		},
		TxTimeout:    cfg.TxTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
	}
}
