package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/config"
	"github.com/Veraticus/the-savings-must-flow/internal/engine"
	"github.com/Veraticus/the-savings-must-flow/internal/storage"
)

const defaultDatabasePath = config.DefaultDatabasePath

// databasePath resolves database.path with tilde and variable expansion.
func databasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}
	return config.ExpandPath(dbPath)
}

// initStorage opens and migrates the SQLite store.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// initEngine opens the store and builds the engine from configuration.
func initEngine(ctx context.Context) (*engine.Engine, error) {
	thresholds, err := config.LoadThresholds(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid analysis configuration", err)
	}
	settings, err := config.LoadRecommendationSettings(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid recommendation configuration", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	cfg := engine.DefaultConfig()
	cfg.Thresholds = thresholds
	cfg.Recommendations = settings

	eng, err := engine.NewWithConfig(store, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return eng, nil
}

// requireUser returns the configured user id.
func requireUser() (string, error) {
	userID := viper.GetString("user")
	if userID == "" {
		return "", common.NewUserError("A user is required (--user or SAVINGS_USER)", common.ErrMissingUserID)
	}
	return userID, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
