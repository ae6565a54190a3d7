package di

import (
	"fmt"

	"github.com/aristath/factorlab/internal/config"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// InitializeServices builds repositories and services on top of the databases
func InitializeServices(container *Container, cfg *config.Config, registerer prometheus.Registerer, log zerolog.Logger) error {
	reg, err := metrics.NewRegistry(registerer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	container.Metrics = reg

	opts := loadings.Options{
		Backend:   cfg.Store.Backend,
		Dir:       cfg.FactorDir(),
		CacheSize: cfg.Store.CacheSize,
		Metrics:   reg,
	}
	switch cfg.Store.Backend {
	case loadings.BackendSQLite:
		opts.DB = container.FactorsDB.Conn()
	case loadings.BackendRedis:
		container.RedisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		opts.Redis = container.RedisClient
	}
	store, err := loadings.Open(opts, log)
	if err != nil {
		return fmt.Errorf("failed to open factor store: %w", err)
	}
	container.Store = store

	container.HistoryRepo = marketdata.NewHistoryDB(container.HistoryDB.Conn(), log)
	container.Snapshots = snapshots.NewFileRepository(cfg.Backtest.SnapshotDir, log)

	days, err := container.HistoryRepo.TradingDays(cfg.Backtest.BenchmarkID)
	if err != nil {
		return fmt.Errorf("failed to load trading calendar: %w", err)
	}
	if len(days) == 0 {
		log.Warn().Str("benchmark_id", cfg.Backtest.BenchmarkID).Msg("Trading calendar is empty")
	}
	container.Calendar = calendar.New(days)

	container.Classifier = tradability.NewClassifier(container.HistoryRepo, log)
	container.Pool = workers.NewWorkerPool(cfg.Workers)
	container.Producer = producer.New(container.Calendar, container.Store, container.Pool, reg, log)

	sim, err := backtest.NewSimulator(backtest.Config{
		StoreID:        cfg.Backtest.StoreID,
		InitialNAV:     cfg.Backtest.InitialNAV,
		SelectionRatio: cfg.Backtest.SelectionRatio,
		FactorField:    cfg.Backtest.FactorField,
	}, backtest.Deps{
		Calendar:   container.Calendar,
		Market:     container.HistoryRepo,
		Store:      container.Store,
		Classifier: container.Classifier,
		Snapshots:  container.Snapshots,
		Metrics:    reg,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}
	container.Simulator = sim

	return nil
}
