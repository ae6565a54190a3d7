package di

import (
	"context"
	"testing"

	"github.com/aristath/factorlab/internal/config"
	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/aristath/factorlab/internal/modules/marketdata"
	testingpkg "github.com/aristath/factorlab/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testingpkg.Date

func testConfig(t *testing.T, backend loadings.Backend) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:  dir,
		LogLevel: "info",
		Workers:  2,
		Store: config.StoreConfig{
			Backend:   backend,
			CacheSize: 16,
			RedisAddr: "localhost:6379",
		},
		Backtest: config.BacktestConfig{
			StoreID:        "apm",
			InitialNAV:     1.0,
			SelectionRatio: 1.0,
			SnapshotDir:    dir + "/backtest/apm",
			BenchmarkID:    "SH000001",
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// seedHistory writes bars before wiring so the calendar picks them up.
func seedHistory(t *testing.T, cfg *config.Config) {
	t.Helper()
	db, err := database.New(database.Config{Path: cfg.HistoryDBPath(), Profile: database.ProfileStandard, Name: "history"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	repo := marketdata.NewHistoryDB(db.Conn(), zerolog.Nop())
	days := testingpkg.NewTradingDays(d(2018, 1, 29), d(2018, 2, 9))
	prices := map[string]float64{"SH000001": 3000, "A": 10, "B": 20}
	for id, p := range prices {
		bars := make([]domain.Bar, 0, len(days))
		for k, day := range days {
			bars = append(bars, testingpkg.FlatBar(day, p*(1+0.002*float64(k))))
		}
		require.NoError(t, repo.UpsertBars(id, bars))
	}
}

func TestWire_CSVBackendEndToEnd(t *testing.T) {
	cfg := testConfig(t, loadings.BackendCSV)
	seedHistory(t, cfg)

	registry := prometheus.NewRegistry()
	container, err := Wire(cfg, zerolog.Nop(), registry)
	require.NoError(t, err)
	defer container.Close()

	assert.Nil(t, container.FactorsDB)
	assert.Nil(t, container.RedisClient)
	assert.IsType(t, &loadings.CachedStore{}, container.Store)
	assert.Equal(t, 10, container.Calendar.Len())

	ctx := context.Background()
	table := domain.NewFactorTable()
	table.Loadings["A"] = []float64{2}
	table.Loadings["B"] = []float64{1}
	require.NoError(t, container.Store.Persist(ctx, "apm", "20180131", table))

	result, err := container.Simulator.Run(ctx, d(2018, 2, 1), d(2018, 2, 9))
	require.NoError(t, err)
	require.Len(t, result.NAV, 7)
	assert.Equal(t, 1.0, result.NAV[0].NAV)
	assert.Greater(t, result.NAV[6].NAV, 1.0)

	snapshot, err := container.Snapshots.LoadHoldings(d(2018, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Holdings, 2)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestWire_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t, loadings.BackendSQLite)

	container, err := Wire(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, container.FactorsDB)
	assert.Equal(t, 0, container.Calendar.Len())

	ctx := context.Background()
	table := domain.NewFactorTable()
	table.Loadings["A"] = []float64{0.5}
	require.NoError(t, container.Store.Persist(ctx, "apm", "20180131", table))

	got, err := container.Store.Load(ctx, "apm", "20180131")
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestWire_RedisBackend(t *testing.T) {
	cfg := testConfig(t, loadings.BackendRedis)

	container, err := Wire(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	require.NotNil(t, container.RedisClient)
	assert.Equal(t, "localhost:6379", container.RedisClient.Options().Addr)
	assert.NoError(t, container.Close())
}

func TestWire_DuplicateMetricsFails(t *testing.T) {
	cfg := testConfig(t, loadings.BackendCSV)
	registry := prometheus.NewRegistry()

	first, err := Wire(cfg, zerolog.Nop(), registry)
	require.NoError(t, err)
	defer first.Close()

	_, err = Wire(cfg, zerolog.Nop(), registry)
	assert.Error(t, err)
}
