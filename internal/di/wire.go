// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/factorlab/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories and services
// registerer may be nil, in which case metrics are collected but not exported
func Wire(cfg *config.Config, log zerolog.Logger, registerer prometheus.Registerer) (*Container, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize services
	if err := InitializeServices(container, cfg, registerer, log); err != nil {
		// Cleanup on error
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().
		Str("store_backend", string(cfg.Store.Backend)).
		Str("store_id", cfg.Backtest.StoreID).
		Int("trading_days", container.Calendar.Len()).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}
