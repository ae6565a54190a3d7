// Package marketdata provides the daily bar repository backing tradability
// checks and portfolio valuation.
package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/domain"
	"github.com/rs/zerolog"
)

// HistoryDB provides access to historical daily bars
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// DailyBar returns the bar of instrumentID on date, or with nearestLEQ the
// latest bar on or before date. Absent bars return (nil, nil).
func (h *HistoryDB) DailyBar(instrumentID string, date time.Time, adjusted bool, nearestLEQ bool) (*domain.Bar, error) {
	query := `
		SELECT date, open, high, low, close, volume, amount, adjust_factor
		FROM daily_bars
		WHERE instrument_id = ? AND date = ?
	`
	if nearestLEQ {
		query = `
			SELECT date, open, high, low, close, volume, amount, adjust_factor
			FROM daily_bars
			WHERE instrument_id = ? AND date <= ?
			ORDER BY date DESC
			LIMIT 1
		`
	}

	var bar domain.Bar
	var dateUnix int64
	err := h.db.QueryRow(query, instrumentID, domain.Day(date).Unix()).Scan(
		&dateUnix, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Amount, &bar.AdjustFactor,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bar of %s on %s: %w",
			instrumentID, date.Format(domain.DateLayout), err)
	}
	bar.Date = time.Unix(dateUnix, 0).UTC()

	if bar.AdjustFactor == 0 {
		bar.AdjustFactor = 1
	}
	if adjusted {
		bar.Open *= bar.AdjustFactor
		bar.High *= bar.AdjustFactor
		bar.Low *= bar.AdjustFactor
		bar.Close *= bar.AdjustFactor
	} else {
		bar.AdjustFactor = 1
	}

	return &bar, nil
}

// UpsertBars writes unadjusted bars for an instrument in a single transaction.
func (h *HistoryDB) UpsertBars(instrumentID string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO daily_bars
			(instrument_id, date, open, high, low, close, volume, amount, adjust_factor)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			factor := b.AdjustFactor
			if factor == 0 {
				factor = 1
			}
			_, err := stmt.Exec(instrumentID, domain.Day(b.Date).Unix(),
				b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount, factor)
			if err != nil {
				return fmt.Errorf("failed to insert bar %s: %w", b.Date.Format(domain.DateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Debug().
		Str("instrument_id", instrumentID).
		Int("bars", len(bars)).
		Msg("Upserted daily bars")

	return nil
}

// TradingDays returns every date on which benchmarkID has a bar, ascending.
// The benchmark is usually a broad index whose sessions define the calendar.
func (h *HistoryDB) TradingDays(benchmarkID string) ([]time.Time, error) {
	rows, err := h.db.Query(
		"SELECT date FROM daily_bars WHERE instrument_id = ? ORDER BY date ASC",
		benchmarkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var dateUnix int64
		if err := rows.Scan(&dateUnix); err != nil {
			return nil, fmt.Errorf("failed to scan trading day: %w", err)
		}
		days = append(days, time.Unix(dateUnix, 0).UTC())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trading days: %w", err)
	}

	return days, nil
}

// Instruments lists the instruments with at least one bar, excluding benchmarkID.
func (h *HistoryDB) Instruments(benchmarkID string) ([]string, error) {
	rows, err := h.db.Query(
		"SELECT DISTINCT instrument_id FROM daily_bars WHERE instrument_id != ? ORDER BY instrument_id",
		benchmarkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return ids, nil
}
