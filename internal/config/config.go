// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every recognized environment variable.
const EnvPrefix = "FACTORLAB_"

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for databases, flat-file stores and snapshots (always absolute)
	LogLevel  string
	LogPretty bool
	Workers   int // Size of the producer worker pool
	Store     StoreConfig
	Backtest  BacktestConfig
}

// StoreConfig selects the factor loading store
type StoreConfig struct {
	Backend       loadings.Backend
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BacktestConfig holds simulator parameters
type BacktestConfig struct {
	StoreID        string
	InitialNAV     float64
	SelectionRatio float64
	FactorField    string // Empty ranks by the table's first field
	SnapshotDir    string // Defaults to <DataDir>/backtest/<StoreID>
	BenchmarkID    string // Instrument whose sessions define the trading calendar
}

// FactorDir is where the csv backend keeps its files.
func (c *Config) FactorDir() string {
	return filepath.Join(c.DataDir, "factors")
}

// HistoryDBPath is the daily bar database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// FactorsDBPath is the sqlite backend database.
func (c *Config) FactorsDBPath() string {
	return filepath.Join(c.DataDir, "factors.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	env := &envReader{}
	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: env.getBool("LOG_PRETTY", false),
		Workers:   env.getInt("WORKERS", 4),
		Store: StoreConfig{
			Backend:       loadings.Backend(getEnv("STORE_BACKEND", string(loadings.BackendCSV))),
			CacheSize:     env.getInt("STORE_CACHE_SIZE", 500),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       env.getInt("REDIS_DB", 0),
		},
		Backtest: BacktestConfig{
			StoreID:        getEnv("BACKTEST_STORE_ID", "apm"),
			InitialNAV:     env.getFloat("BACKTEST_INITIAL_NAV", 1.0),
			SelectionRatio: env.getFloat("BACKTEST_SELECTION_RATIO", 0.1),
			FactorField:    getEnv("BACKTEST_FACTOR_FIELD", ""),
			SnapshotDir:    getEnv("BACKTEST_SNAPSHOT_DIR", ""),
			BenchmarkID:    getEnv("BACKTEST_BENCHMARK_ID", "SH000001"),
		},
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if cfg.Backtest.SnapshotDir == "" {
		cfg.Backtest.SnapshotDir = filepath.Join(cfg.DataDir, "backtest", cfg.Backtest.StoreID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every field holds a recognized value
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case loadings.BackendCSV, loadings.BackendSQLite, loadings.BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store cache size must not be negative, got %d", c.Store.CacheSize)
	}
	if c.Store.Backend == loadings.BackendRedis && c.Store.RedisAddr == "" {
		return fmt.Errorf("redis backend requires an address")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Backtest.StoreID == "" {
		return fmt.Errorf("backtest store id is required")
	}
	if c.Backtest.InitialNAV <= 0 {
		return fmt.Errorf("initial nav must be positive, got %v", c.Backtest.InitialNAV)
	}
	if !(c.Backtest.SelectionRatio > 0 && c.Backtest.SelectionRatio <= 1) {
		return fmt.Errorf("selection ratio must be in (0, 1], got %v", c.Backtest.SelectionRatio)
	}
	if c.Backtest.BenchmarkID == "" {
		return fmt.Errorf("benchmark id is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and remembers every malformed value.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	value := os.Getenv(EnvPrefix + key)
	return value, value != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, value, err))
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return intVal
}

func (r *envReader) getFloat(key string, defaultValue float64) float64 {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return floatVal
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return boolVal
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}
