// Package loadings persists and retrieves per-date factor loading tables.
//
// A table is addressed by (store id, date key), where the date key is an
// 8-digit YYYYMMDD string. Loading an absent key yields an empty table and no
// error; a table that exists but cannot be decoded yields an error wrapping
// ErrCorrupt. Every backend publishes a table atomically, so a concurrent Load
// observes either the previous table or the new one.
package loadings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var (
	// ErrCorrupt marks a persisted table that exists but fails to decode.
	ErrCorrupt = errors.New("corrupt factor table")
	// ErrInvalidDateKey marks a date key that is not an 8-digit calendar date.
	ErrInvalidDateKey = errors.New("invalid date key")
)

// Store persists factor tables keyed by (store id, date key).
type Store interface {
	Persist(ctx context.Context, storeID, dateKey string, table domain.FactorTable) error
	Load(ctx context.Context, storeID, dateKey string) (domain.FactorTable, error)
}

// Backend names a physical encoding.
type Backend string

const (
	// BackendCSV shards tables into one flat file per (store, date).
	BackendCSV Backend = "csv"
	// BackendSQLite co-locates all dates of all stores in one keyed container.
	BackendSQLite Backend = "sqlite"
	// BackendRedis co-locates all dates of a store in one Redis hash.
	BackendRedis Backend = "redis"
)

// Options selects and configures the store returned by Open.
type Options struct {
	Backend   Backend
	Dir       string        // BackendCSV
	DB        *sql.DB       // BackendSQLite
	Redis     redis.Cmdable // BackendRedis
	CacheSize int           // <= 0 disables the read cache
	Metrics   *metrics.Registry
}

// Open builds the configured backend, wrapped in a read cache when CacheSize > 0.
func Open(opts Options, log zerolog.Logger) (Store, error) {
	var store Store
	switch opts.Backend {
	case BackendCSV:
		if opts.Dir == "" {
			return nil, fmt.Errorf("csv store requires a directory")
		}
		store = NewFileStore(opts.Dir, log)
	case BackendSQLite:
		if opts.DB == nil {
			return nil, fmt.Errorf("sqlite store requires a database")
		}
		store = NewSQLiteStore(opts.DB, log)
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis store requires a client")
		}
		store = NewRedisStore(opts.Redis, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if opts.CacheSize > 0 {
		store = NewCachedStore(store, opts.CacheSize, opts.Metrics)
	}
	return store, nil
}

// ValidateKey checks a (store id, date key) pair.
func ValidateKey(storeID, dateKey string) error {
	if storeID == "" {
		return fmt.Errorf("store id is required")
	}
	if len(dateKey) != 8 {
		return fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
	}
	for _, r := range dateKey {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
		}
	}
	if _, err := domain.ParseDateKey(dateKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDateKey, err)
	}
	return nil
}

func validateTable(table domain.FactorTable) error {
	if len(table.Fields) == 0 {
		return fmt.Errorf("factor table has no fields")
	}
	for id, row := range table.Loadings {
		if id == "" {
			return fmt.Errorf("factor table has an empty instrument id")
		}
		if len(row) != len(table.Fields) {
			return fmt.Errorf("instrument %s has %d values, want %d", id, len(row), len(table.Fields))
		}
	}
	return nil
}

func emptyTable() domain.FactorTable {
	return domain.NewFactorTable()
}
