// Package producer computes factor loading tables for a universe of
// instruments over a date range and persists them into a loadings store.
package producer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/aristath/factorlab/internal/utils"
	"github.com/aristath/factorlab/internal/workers"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// MADMultiple bounds winsorized values to median ± MADMultiple·MAD.
const MADMultiple = 5.2

// LoadingFunc computes the loadings of one instrument on date, one value per
// field. ok is false when the instrument has no loading that day.
type LoadingFunc func(ctx context.Context, instrumentID string, date time.Time) (values []float64, ok bool, err error)

// Config describes one production batch.
type Config struct {
	StoreID      string
	Fields       []string // defaults to the single factorvalue field
	MonthEndOnly bool     // only compute on the last trading day of each month
	Standardize  bool     // winsorize then z-score every field across instruments
}

// Producer fans loading computations out over a worker pool.
type Producer struct {
	calendar domain.TradingCalendar
	store    loadings.Store
	pool     *workers.WorkerPool
	metrics  *metrics.Registry
	log      zerolog.Logger
}

// New creates a producer
func New(calendar domain.TradingCalendar, store loadings.Store, pool *workers.WorkerPool, m *metrics.Registry, log zerolog.Logger) *Producer {
	return &Producer{
		calendar: calendar,
		store:    store,
		pool:     pool,
		metrics:  m,
		log:      log.With().Str("component", "producer").Logger(),
	}
}

type loading struct {
	values []float64
	ok     bool
}

// Produce computes and persists a table for every (month-end) trading day in
// [start, end]. Instruments whose computation fails are left out of that
// day's table. It returns the date keys written.
func (p *Producer) Produce(ctx context.Context, cfg Config, instruments []string, start, end time.Time, fn LoadingFunc) ([]string, error) {
	if cfg.StoreID == "" {
		return nil, fmt.Errorf("store id is required")
	}
	fields := cfg.Fields
	if len(fields) == 0 {
		fields = []string{domain.DefaultFactorField}
	}

	var written []string
	for _, day := range p.calendar.TradingDays(start, end) {
		if cfg.MonthEndOnly && !p.calendar.IsMonthEnd(day) {
			continue
		}

		key := domain.DateKey(day)
		stop := utils.OperationTimer("produce_"+key, p.log)
		table, err := p.compute(ctx, fields, instruments, day, fn)
		stop()
		if err != nil {
			return written, err
		}
		if cfg.Standardize {
			Standardize(table)
		}

		if err := p.store.Persist(ctx, cfg.StoreID, key, table); err != nil {
			return written, fmt.Errorf("failed to persist loadings of %s: %w", key, err)
		}
		p.metrics.RecordProducedTable(cfg.StoreID)
		written = append(written, key)

		p.log.Info().
			Str("store_id", cfg.StoreID).
			Str("date_key", key).
			Int("instruments", table.Len()).
			Msg("Produced factor loadings")
	}
	return written, nil
}

func (p *Producer) compute(ctx context.Context, fields, instruments []string, day time.Time, fn LoadingFunc) (domain.FactorTable, error) {
	results := workers.Process(ctx, p.pool, instruments, func(ctx context.Context, id string) (loading, error) {
		values, ok, err := fn(ctx, id, day)
		return loading{values: values, ok: ok}, err
	})
	if err := ctx.Err(); err != nil {
		return domain.FactorTable{}, err
	}

	table := domain.NewFactorTable(fields...)
	for i, r := range results {
		id := instruments[i]
		switch {
		case r.Err != nil:
			p.log.Warn().Err(r.Err).Str("instrument_id", id).Msg("Failed to compute loading")
		case !r.Value.ok:
			continue
		case len(r.Value.values) != len(fields):
			p.log.Warn().
				Str("instrument_id", id).
				Int("values", len(r.Value.values)).
				Int("fields", len(fields)).
				Msg("Loading width does not match fields")
		case hasNaN(r.Value.values):
			continue
		default:
			table.Loadings[id] = r.Value.values
		}
	}
	return table, nil
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Standardize winsorizes and z-scores every field of table in place.
func Standardize(table domain.FactorTable) {
	ids := table.IDs()
	if len(ids) == 0 {
		return
	}
	column := make([]float64, len(ids))
	for f := range table.Fields {
		for i, id := range ids {
			column[i] = table.Loadings[id][f]
		}
		Winsorize(column, MADMultiple)
		ZScore(column)
		for i, id := range ids {
			table.Loadings[id][f] = column[i]
		}
	}
}

// Winsorize clamps values to median ± k·MAD in place.
func Winsorize(values []float64, k float64) {
	if len(values) == 0 {
		return
	}
	m := median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - m)
	}
	mad := median(deviations)
	upper, lower := m+k*mad, m-k*mad
	for i, v := range values {
		values[i] = math.Max(lower, math.Min(upper, v))
	}
}

// ZScore standardizes values in place with the population standard deviation.
// A constant column becomes all zeros.
func ZScore(values []float64) {
	if len(values) == 0 {
		return
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	for i, v := range values {
		if std == 0 {
			values[i] = 0
			continue
		}
		values[i] = (v - mean) / std
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
