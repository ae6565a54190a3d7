// Package backtest simulates a monthly rebalanced, equal-weight, top-ranked
// factor portfolio over a sequence of trading days and records its NAV.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/aristath/factorlab/internal/modules/loadings"
	"github.com/aristath/factorlab/internal/modules/performance"
	"github.com/aristath/factorlab/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDataRequired is returned when a freshly selected instrument has no bar
	// on the rebalance day, so its entry price cannot be computed.
	ErrDataRequired = errors.New("required market data missing")
	// ErrEmptySelection is returned when no instrument survives filtering on a
	// rebalance day.
	ErrEmptySelection = errors.New("no eligible instruments")
)

const (
	DefaultInitialNAV     = 1.0
	DefaultSelectionRatio = 0.1
)

// selectionEpsilon absorbs float error in count*ratio, e.g. 10*0.7.
const selectionEpsilon = 1e-9

// Config holds the parameters of one backtest.
type Config struct {
	StoreID        string  // factor store the rankings are loaded from
	InitialNAV     float64 // NAV of a run that has no prior history
	SelectionRatio float64 // fraction of eligible instruments held, in (0, 1]
	FactorField    string  // ranking field; empty uses the table's first field
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.StoreID == "" {
		return fmt.Errorf("store id is required")
	}
	if c.InitialNAV <= 0 || math.IsNaN(c.InitialNAV) || math.IsInf(c.InitialNAV, 0) {
		return fmt.Errorf("initial nav must be positive, got %v", c.InitialNAV)
	}
	if !(c.SelectionRatio > 0 && c.SelectionRatio <= 1) {
		return fmt.Errorf("selection ratio must be in (0, 1], got %v", c.SelectionRatio)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.InitialNAV == 0 {
		c.InitialNAV = DefaultInitialNAV
	}
	if c.SelectionRatio == 0 {
		c.SelectionRatio = DefaultSelectionRatio
	}
	return c
}

// SnapshotRepository persists holdings snapshots and the NAV series.
type SnapshotRepository interface {
	SaveHoldings(date time.Time, holdings []domain.Holding) error
	LatestHoldingsBefore(date time.Time) (*domain.Portfolio, error)
	SaveNAV(series domain.NavSeries) error
	LoadNAVBefore(date time.Time) (domain.NavSeries, error)
}

// Deps are the collaborators of a Simulator. Snapshots and Metrics may be nil.
type Deps struct {
	Calendar   domain.TradingCalendar
	Market     domain.MarketDataRepository
	Store      loadings.Store
	Classifier domain.StatusClassifier
	Snapshots  SnapshotRepository
	Metrics    *metrics.Registry
}

// Result is the output of a run.
type Result struct {
	RunID      uuid.UUID
	NAV        domain.NavSeries // one point per simulated day
	Rebalances []time.Time
	Summary    performance.Summary // of NAV, set when the run completes
}

// Simulator runs backtests. It holds no state between runs, so a single
// Simulator may be shared by concurrent runs.
type Simulator struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

// NewSimulator validates the configuration and collaborators
func NewSimulator(cfg Config, deps Deps, log zerolog.Logger) (*Simulator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	switch {
	case deps.Calendar == nil:
		return nil, fmt.Errorf("trading calendar is required")
	case deps.Market == nil:
		return nil, fmt.Errorf("market data repository is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("factor store is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("tradability classifier is required")
	}

	return &Simulator{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "backtest").Logger(),
	}, nil
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// run is the mutable state of one Run call.
type run struct {
	log       zerolog.Logger
	nav       float64
	portfolio *domain.Portfolio
	prior     domain.NavSeries
	result    *Result
}

// Run simulates every trading day in [start, end]. The first day and every
// first trading day of a month rebalance; all other days revalue the held
// portfolio. On error the result holds the days completed before the failing
// one and the NAV file is still written.
func (s *Simulator) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	days := s.deps.Calendar.TradingDays(start, end)
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}

	r := &run{
		nav:    s.cfg.InitialNAV,
		result: &Result{RunID: uuid.New()},
	}
	r.log = s.log.With().
		Str("run_id", r.result.RunID.String()).
		Str("store_id", s.cfg.StoreID).
		Logger()

	if err := s.restore(r, days[0]); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("start", days[0].Format(domain.DateLayout)).
		Str("end", days[len(days)-1].Format(domain.DateLayout)).
		Int("days", len(days)).
		Float64("nav", r.nav).
		Bool("resumed", r.portfolio != nil).
		Msg("Starting backtest")

	stop := utils.OperationTimer("backtest_run", r.log)
	defer stop()

	var runErr error
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if i == 0 || s.deps.Calendar.IsMonthStart(day) {
			if err := s.rebalance(ctx, r, day, i == 0); err != nil {
				runErr = fmt.Errorf("rebalance on %s: %w", day.Format(domain.DateLayout), err)
				break
			}
		} else {
			if err := s.value(r, day); err != nil {
				runErr = fmt.Errorf("valuation on %s: %w", day.Format(domain.DateLayout), err)
				break
			}
		}

		r.result.NAV = append(r.result.NAV, domain.NavPoint{Date: day, NAV: r.nav})
		s.deps.Metrics.RecordDay(s.cfg.StoreID, r.nav)
	}

	if err := s.saveNAV(r); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		r.log.Error().Err(runErr).Int("completed_days", len(r.result.NAV)).Msg("Backtest aborted")
		return r.result, runErr
	}

	r.result.Summary = performance.Summarize(r.result.NAV)
	r.log.Info().
		Int("days", len(r.result.NAV)).
		Int("rebalances", len(r.result.Rebalances)).
		Float64("nav", r.nav).
		Float64("total_return", r.result.Summary.TotalReturn).
		Float64("max_drawdown", r.result.Summary.MaxDrawdown).
		Msg("Backtest completed")

	return r.result, nil
}

// restore loads the latest portfolio and NAV history preceding start.
func (s *Simulator) restore(r *run, start time.Time) error {
	if s.deps.Snapshots == nil {
		return nil
	}

	prior, err := s.deps.Snapshots.LoadNAVBefore(start)
	if err != nil {
		return fmt.Errorf("failed to load nav history: %w", err)
	}
	r.prior = prior
	if last, ok := prior.Last(); ok {
		r.nav = last.NAV
	}

	portfolio, err := s.deps.Snapshots.LatestHoldingsBefore(start)
	if err != nil {
		return fmt.Errorf("failed to load holdings snapshot: %w", err)
	}
	if !portfolio.IsEmpty() {
		r.portfolio = portfolio
	}
	return nil
}

func (s *Simulator) saveNAV(r *run) error {
	if s.deps.Snapshots == nil {
		return nil
	}
	series := make(domain.NavSeries, 0, len(r.prior)+len(r.result.NAV))
	series = append(series, r.prior...)
	series = append(series, r.result.NAV...)
	if err := s.deps.Snapshots.SaveNAV(series); err != nil {
		return fmt.Errorf("failed to save nav series: %w", err)
	}
	return nil
}

// rebalance closes out the held portfolio at the day's VWAP, selects and buys
// the new one, and values it at the day's close. State is committed only when
// every step succeeds.
func (s *Simulator) rebalance(ctx context.Context, r *run, day time.Time, first bool) error {
	basis := r.nav
	if !r.portfolio.IsEmpty() {
		exitNAV, err := s.exitValue(r, day)
		if err != nil {
			return err
		}
		basis = exitNAV
	}

	selected, err := s.selectInstruments(ctx, r, day)
	if err != nil {
		return err
	}

	holdings := make([]domain.Holding, len(selected))
	returns := make([]float64, len(selected))
	notional := basis / float64(len(selected))
	for i, id := range selected {
		bar, err := s.deps.Market.DailyBar(id, day, true, false)
		if err != nil {
			return fmt.Errorf("failed to load entry bar of %s: %w", id, err)
		}
		if bar == nil {
			return fmt.Errorf("%w: no bar for %s", ErrDataRequired, id)
		}
		entry, ok := bar.VWAP()
		if !ok {
			entry = bar.Close
		}
		if !(entry > 0) {
			return fmt.Errorf("%w: non-positive entry price %v for %s", ErrDataRequired, entry, id)
		}

		holdings[i] = domain.Holding{
			InstrumentID: id,
			Quantity:     notional / entry,
			EntryPrice:   entry,
			EntryDate:    day,
		}
		returns[i] = bar.Close/entry - 1
	}

	if s.deps.Snapshots != nil {
		if err := s.deps.Snapshots.SaveHoldings(day, holdings); err != nil {
			return fmt.Errorf("failed to save holdings snapshot: %w", err)
		}
	}

	nav := basis * (1 + stat.Mean(returns, nil))
	if first && r.portfolio == nil {
		// The opening day of a fresh run is the baseline.
		nav = basis
	}

	r.portfolio = &domain.Portfolio{Date: day, Holdings: holdings, Basis: basis}
	r.nav = nav
	r.result.Rebalances = append(r.result.Rebalances, day)
	s.deps.Metrics.RecordRebalance(s.cfg.StoreID, len(holdings))

	r.log.Info().
		Str("date", day.Format(domain.DateLayout)).
		Float64("basis", basis).
		Int("selected", len(holdings)).
		Float64("nav", nav).
		Msg("Rebalanced portfolio")

	return nil
}

// exitValue values the held portfolio at the day's VWAP where the instrument
// traded that day, at its latest close otherwise.
func (s *Simulator) exitValue(r *run, day time.Time) (float64, error) {
	held := r.portfolio.Holdings
	returns := make([]float64, len(held))
	for i, h := range held {
		bar, err := s.deps.Market.DailyBar(h.InstrumentID, day, true, true)
		if err != nil {
			return 0, fmt.Errorf("failed to load exit bar of %s: %w", h.InstrumentID, err)
		}

		exit := h.EntryPrice
		switch {
		case bar == nil:
			r.log.Warn().
				Str("instrument_id", h.InstrumentID).
				Str("date", day.Format(domain.DateLayout)).
				Msg("No bar to exit holding, assuming entry price")
		case bar.Date.Equal(domain.Day(day)) && bar.HasTrades():
			exit, _ = bar.VWAP()
		default:
			exit = bar.Close
		}
		returns[i] = exit/h.EntryPrice - 1
	}
	return r.portfolio.Basis * (1 + stat.Mean(returns, nil)), nil
}

type candidate struct {
	id    string
	value float64
}

// selectInstruments ranks the factor table of the previous trading day and
// keeps the top ratio of instruments that can be bought on day.
func (s *Simulator) selectInstruments(ctx context.Context, r *run, day time.Time) ([]string, error) {
	table := domain.NewFactorTable()
	if prev, ok := s.deps.Calendar.PrevTradingDay(day); ok {
		loaded, err := s.deps.Store.Load(ctx, s.cfg.StoreID, domain.DateKey(prev))
		if err != nil {
			return nil, fmt.Errorf("failed to load factor table: %w", err)
		}
		table = loaded
	}
	if table.IsEmpty() {
		r.log.Warn().Str("date", day.Format(domain.DateLayout)).Msg("No factor loadings for rebalance")
		return nil, fmt.Errorf("%w: no factor loadings", ErrEmptySelection)
	}

	field := s.cfg.FactorField
	if field == "" {
		field = table.Fields[0]
	}
	if table.FieldIndex(field) < 0 {
		return nil, fmt.Errorf("factor field %q not in table fields %v", field, table.Fields)
	}

	candidates := make([]candidate, 0, table.Len())
	for _, id := range table.IDs() {
		value, _ := table.Value(id, field)
		if math.IsNaN(value) {
			continue
		}
		status, err := s.deps.Classifier.Status(id, day)
		if err != nil {
			return nil, fmt.Errorf("failed to classify %s: %w", id, err)
		}
		if status == domain.StatusSuspended || status == domain.StatusLimitUp {
			continue
		}
		candidates = append(candidates, candidate{id: id, value: value})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].value != candidates[j].value {
			return candidates[i].value > candidates[j].value
		}
		return candidates[i].id < candidates[j].id
	})

	n := int(float64(len(candidates))*s.cfg.SelectionRatio + selectionEpsilon)
	if n == 0 {
		return nil, fmt.Errorf("%w: %d of %d instruments eligible at ratio %v",
			ErrEmptySelection, len(candidates), table.Len(), s.cfg.SelectionRatio)
	}

	r.log.Debug().
		Str("date", day.Format(domain.DateLayout)).
		Int("loadings", table.Len()).
		Int("eligible", len(candidates)).
		Int("selected", n).
		Msg("Ranked candidates")

	selected := make([]string, n)
	for i := range selected {
		selected[i] = candidates[i].id
	}
	return selected, nil
}

// value marks the held portfolio to the latest close on or before day.
// Holdings without any bar are left out of the sum.
func (s *Simulator) value(r *run, day time.Time) error {
	if r.portfolio.IsEmpty() {
		return nil
	}

	nav := 0.0
	for _, h := range r.portfolio.Holdings {
		bar, err := s.deps.Market.DailyBar(h.InstrumentID, day, true, true)
		if err != nil {
			return fmt.Errorf("failed to load bar of %s: %w", h.InstrumentID, err)
		}
		if bar == nil {
			r.log.Warn().
				Str("instrument_id", h.InstrumentID).
				Str("date", day.Format(domain.DateLayout)).
				Msg("No bar to value holding, excluding it")
			continue
		}
		nav += h.Quantity * bar.Close
	}

	r.nav = nav
	r.log.Debug().
		Str("date", day.Format(domain.DateLayout)).
		Float64("nav", nav).
		Msg("Valued portfolio")

	return nil
}
