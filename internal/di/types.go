// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/aristath/factorlab/internal/modules/backtest"
	"github.com/aristath/factorlab/internal/modules/calendar"
	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/aristath/factorlab/internal/modules/marketdata"
	"github.com/aristath/factorlab/internal/modules/producer"
	"github.com/aristath/factorlab/internal/modules/snapshots"
	"github.com/aristath/factorlab/internal/modules/tradability"
	"github.com/aristath/factorlab/internal/workers"
	"github.com/go-redis/redis/v8"
)

// Container holds all dependencies for the application.
// It is created by Wire and released with Close.
type Container struct {
	// Databases
	HistoryDB *database.DB // daily bars
	FactorsDB *database.DB // sqlite factor store, nil for other backends

	// Clients
	RedisClient *redis.Client // nil unless the redis backend is selected

	// Repositories
	HistoryRepo *marketdata.HistoryDB
	Store       loadings.Store
	Snapshots   *snapshots.FileRepository

	// Services
	Metrics    *metrics.Registry
	Calendar   *calendar.Calendar
	Classifier *tradability.Classifier
	Pool       *workers.WorkerPool
	Producer   *producer.Producer
	Simulator  *backtest.Simulator
}
