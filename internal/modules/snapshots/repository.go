// Package snapshots persists dated holdings snapshots and the NAV series of a
// backtest as flat files in one directory.
package snapshots

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	holdingsPrefix = "holdings_"
	holdingsSuffix = ".csv"
	navFile        = "nav.csv"
)

var holdingsHeader = []string{"instrument_id", "quantity", "entry_price", "date"}

// FileRepository stores holdings_<YYYYMMDD>.csv per rebalance and one nav.csv.
// Every file is published with a temp file and rename.
type FileRepository struct {
	dir string
	log zerolog.Logger
}

// NewFileRepository creates a repository rooted at dir
func NewFileRepository(dir string, log zerolog.Logger) *FileRepository {
	return &FileRepository{
		dir: dir,
		log: log.With().Str("component", "snapshots").Logger(),
	}
}

// Dir returns the snapshot directory.
func (r *FileRepository) Dir() string {
	return r.dir
}

// HoldingsPath returns the snapshot file of a rebalance date.
func (r *FileRepository) HoldingsPath(date time.Time) string {
	return filepath.Join(r.dir, holdingsPrefix+domain.DateKey(date)+holdingsSuffix)
}

// NAVPath returns the NAV series file.
func (r *FileRepository) NAVPath() string {
	return filepath.Join(r.dir, navFile)
}

// SaveHoldings writes the holdings bought on date.
func (r *FileRepository) SaveHoldings(date time.Time, holdings []domain.Holding) error {
	records := make([][]string, 0, len(holdings)+1)
	records = append(records, holdingsHeader)
	for _, h := range holdings {
		records = append(records, []string{
			h.InstrumentID,
			decimal.NewFromFloat(h.Quantity).String(),
			decimal.NewFromFloat(h.EntryPrice).String(),
			h.EntryDate.Format(domain.DateLayout),
		})
	}

	if err := r.writeAtomic(r.HoldingsPath(date), records); err != nil {
		return fmt.Errorf("failed to save holdings of %s: %w", domain.DateKey(date), err)
	}

	r.log.Debug().
		Str("date", date.Format(domain.DateLayout)).
		Int("holdings", len(holdings)).
		Msg("Saved holdings snapshot")

	return nil
}

// LoadHoldings reads the snapshot of exactly date. A missing snapshot is (nil, nil).
func (r *FileRepository) LoadHoldings(date time.Time) (*domain.Portfolio, error) {
	f, err := os.Open(r.HoldingsPath(date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings snapshot: %w", err)
	}
	defer f.Close()

	holdings, err := readHoldings(f)
	if err != nil {
		return nil, fmt.Errorf("holdings snapshot %s: %w", domain.DateKey(date), err)
	}

	portfolio := &domain.Portfolio{Date: domain.Day(date), Holdings: holdings}
	for _, h := range holdings {
		portfolio.Basis += h.Quantity * h.EntryPrice
	}
	return portfolio, nil
}

// LatestHoldingsBefore loads the most recent snapshot dated strictly before date.
// Its Basis is the value of the holdings at their entry prices.
func (r *FileRepository) LatestHoldingsBefore(date time.Time) (*domain.Portfolio, error) {
	dates, err := r.SnapshotDates()
	if err != nil {
		return nil, err
	}

	date = domain.Day(date)
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i].Before(date) {
			return r.LoadHoldings(dates[i])
		}
	}
	return nil, nil
}

// SnapshotDates lists the dates with a holdings snapshot, ascending.
func (r *FileRepository) SnapshotDates() ([]time.Time, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, holdingsPrefix) || !strings.HasSuffix(name, holdingsSuffix) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, holdingsPrefix), holdingsSuffix)
		date, err := domain.ParseDateKey(key)
		if err != nil {
			r.log.Warn().Str("file", name).Msg("Ignoring snapshot with malformed date")
			continue
		}
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// SaveNAV replaces the NAV file with series.
func (r *FileRepository) SaveNAV(series domain.NavSeries) error {
	records := make([][]string, 0, len(series)+1)
	records = append(records, []string{"date", "nav"})
	for _, p := range series {
		records = append(records, []string{
			p.Date.Format(domain.DateLayout),
			decimal.NewFromFloat(p.NAV).String(),
		})
	}

	if err := r.writeAtomic(r.NAVPath(), records); err != nil {
		return fmt.Errorf("failed to save nav series: %w", err)
	}
	return nil
}

// LoadNAV reads the whole NAV file; a missing file is an empty series.
func (r *FileRepository) LoadNAV() (domain.NavSeries, error) {
	f, err := os.Open(r.NAVPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open nav series: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read nav header: %w", err)
	}

	var series domain.NavSeries
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read nav series: %w", err)
		}
		if len(record) != 2 {
			return nil, fmt.Errorf("nav record has %d columns, want 2", len(record))
		}

		date, err := time.Parse(domain.DateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid nav date %q: %w", record[0], err)
		}
		nav, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, fmt.Errorf("invalid nav value %q: %w", record[1], err)
		}
		if last, ok := series.Last(); ok && !date.After(last.Date) {
			return nil, fmt.Errorf("nav series out of order at %s", record[0])
		}
		value, _ := nav.Float64()
		series = append(series, domain.NavPoint{Date: date, NAV: value})
	}
	return series, nil
}

// LoadNAVBefore returns the stored NAV points dated strictly before date.
func (r *FileRepository) LoadNAVBefore(date time.Time) (domain.NavSeries, error) {
	series, err := r.LoadNAV()
	if err != nil {
		return nil, err
	}
	return series.Before(date), nil
}

// ExportWeights writes the snapshot of date as an equal-weight position list
// for import into a portfolio simulator: weight as a percentage with four
// decimals, cost price with two.
func (r *FileRepository) ExportWeights(w io.Writer, date time.Time) error {
	portfolio, err := r.LoadHoldings(date)
	if err != nil {
		return err
	}
	if portfolio == nil {
		return fmt.Errorf("no holdings snapshot on %s", date.Format(domain.DateLayout))
	}

	weight := "0.0000%"
	if n := len(portfolio.Holdings); n > 0 {
		weight = decimal.NewFromInt(100).DivRound(decimal.NewFromInt(int64(n)), 4).StringFixed(4) + "%"
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"instrument_id", "weight", "cost_price", "adjust_date", "security_type"}); err != nil {
		return err
	}
	for _, h := range portfolio.Holdings {
		err := cw.Write([]string{
			h.InstrumentID,
			weight,
			decimal.NewFromFloat(h.EntryPrice).StringFixed(2),
			h.EntryDate.Format(domain.DateLayout),
			"stock",
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *FileRepository) writeAtomic(path string, records [][]string) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cw := csv.NewWriter(tmp)
	if err := cw.WriteAll(records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func readHoldings(rd io.Reader) ([]domain.Holding, error) {
	cr := csv.NewReader(rd)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(holdingsHeader, ",") {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var holdings []domain.Holding
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		quantity, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity of %s: %w", record[0], err)
		}
		price, err := decimal.NewFromString(record[2])
		if err != nil {
			return nil, fmt.Errorf("invalid entry price of %s: %w", record[0], err)
		}
		date, err := time.Parse(domain.DateLayout, record[3])
		if err != nil {
			return nil, fmt.Errorf("invalid entry date of %s: %w", record[0], err)
		}

		q, _ := quantity.Float64()
		p, _ := price.Float64()
		holdings = append(holdings, domain.Holding{
			InstrumentID: record[0],
			Quantity:     q,
			EntryPrice:   p,
			EntryDate:    date,
		})
	}
	return holdings, nil
}
