// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"os"

	"github.com/aristath/factorlab/internal/config"
	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the databases the configuration needs
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// 1. history.db - daily bars and the benchmark calendar
	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	if err := historyDB.Migrate(); err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	container.HistoryDB = historyDB

	// 2. factors.db - keyed container of factor tables (sqlite backend only)
	if cfg.Store.Backend == loadings.BackendSQLite {
		factorsDB, err := database.New(database.Config{
			Path:    cfg.FactorsDBPath(),
			Profile: database.ProfileStandard,
			Name:    "factors",
		})
		if err != nil {
			historyDB.Close()
			return nil, fmt.Errorf("failed to initialize factors database: %w", err)
		}
		if err := factorsDB.Migrate(); err != nil {
			historyDB.Close()
			factorsDB.Close()
			return nil, fmt.Errorf("failed to migrate factors database: %w", err)
		}
		container.FactorsDB = factorsDB
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Bool("factors_db", container.FactorsDB != nil).
		Msg("Databases initialized")

	return container, nil
}

// Close releases every connection held by the container
func (c *Container) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.RedisClient != nil {
		keep(c.RedisClient.Close())
	}
	if c.FactorsDB != nil {
		keep(c.FactorsDB.Close())
	}
	if c.HistoryDB != nil {
		keep(c.HistoryDB.Close())
	}
	return firstErr
}
