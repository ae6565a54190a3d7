package loadings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/domain"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps every table in the factor_loadings table of factors.db.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a store over a migrated factors database
func NewSQLiteStore(db *sql.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "sqlite_store").Logger(),
	}
}

// Persist replaces the row of (store id, date key) in one transaction.
func (s *SQLiteStore) Persist(ctx context.Context, storeID, dateKey string, table domain.FactorTable) error {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return err
	}
	if err := validateTable(table); err != nil {
		return err
	}

	data, err := encodeTable(table)
	if err != nil {
		return err
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO factor_loadings (store_id, date_key, payload, rows, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, storeID, dateKey, data, table.Len(), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to upsert factor table: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().
		Str("store_id", storeID).
		Str("date_key", dateKey).
		Int("rows", table.Len()).
		Msg("Persisted factor table")

	return nil
}

// Load returns the table of (store id, date key), or an empty table.
func (s *SQLiteStore) Load(ctx context.Context, storeID, dateKey string) (domain.FactorTable, error) {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return domain.FactorTable{}, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM factor_loadings WHERE store_id = ? AND date_key = ?",
		storeID, dateKey,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return emptyTable(), nil
	}
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("failed to query factor table: %w", err)
	}

	table, err := decodeTable(data)
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("%s_%s: %w", storeID, dateKey, err)
	}
	return table, nil
}

// DateKeys lists the persisted date keys of a store in ascending order.
func (s *SQLiteStore) DateKeys(ctx context.Context, storeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date_key FROM factor_loadings WHERE store_id = ? ORDER BY date_key ASC",
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query date keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan date key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating date keys: %w", err)
	}
	return keys, nil
}
