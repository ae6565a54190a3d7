package producer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/metrics"
	"github.com/aristath/factorlab/internal/modules/calendar"
	"github.com/aristath/factorlab/internal/modules/loadings"
	testingpkg "github.com/aristath/factorlab/internal/testing"
	"github.com/aristath/factorlab/internal/workers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var d = testingpkg.Date

func newProducer(t *testing.T) (*Producer, loadings.Store, *metrics.Registry) {
	t.Helper()
	reg, err := metrics.NewRegistry(nil)
	require.NoError(t, err)
	cal := calendar.New(testingpkg.NewTradingDays(d(2018, 1, 1), d(2018, 3, 30)))
	store := loadings.NewFileStore(t.TempDir(), zerolog.Nop())
	return New(cal, store, workers.NewWorkerPool(4), reg, zerolog.Nop()), store, reg
}

func TestProduce_MonthEnds(t *testing.T) {
	p, store, reg := newProducer(t)
	ctx := context.Background()

	boom := errors.New("no data")
	fn := func(_ context.Context, id string, date time.Time) ([]float64, bool, error) {
		switch id {
		case "NEW":
			return nil, false, nil
		case "BAD":
			return nil, false, boom
		case "NAN":
			return []float64{math.NaN()}, true, nil
		}
		return []float64{float64(date.Day()) + float64(len(id))}, true, nil
	}

	keys, err := p.Produce(ctx, Config{StoreID: "apm", MonthEndOnly: true},
		[]string{"A", "BB", "NEW", "BAD", "NAN"}, d(2018, 1, 1), d(2018, 3, 30), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"20180131", "20180228"}, keys, "the calendar's last day is not a month end")

	table, err := store.Load(ctx, "apm", "20180228")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "BB"}, table.IDs())
	v, ok := table.Value("BB", domain.DefaultFactorField)
	require.True(t, ok)
	assert.Equal(t, 30.0, v)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.ProducedTables.WithLabelValues("apm")))
}

func TestProduce_EveryDayMultiField(t *testing.T) {
	p, store, _ := newProducer(t)
	ctx := context.Background()

	fn := func(_ context.Context, id string, date time.Time) ([]float64, bool, error) {
		if id == "SHORT" {
			return []float64{1}, true, nil
		}
		return []float64{1, float64(date.Day())}, true, nil
	}

	keys, err := p.Produce(ctx, Config{StoreID: "risk", Fields: []string{"BETA", "HSIGMA"}},
		[]string{"A", "SHORT"}, d(2018, 1, 1), d(2018, 1, 5), fn)
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	table, err := store.Load(ctx, "risk", "20180103")
	require.NoError(t, err)
	assert.Equal(t, []string{"BETA", "HSIGMA"}, table.Fields)
	assert.Equal(t, map[string][]float64{"A": {1, 3}}, table.Loadings)
}

func TestProduce_Standardized(t *testing.T) {
	p, store, _ := newProducer(t)
	ctx := context.Background()

	raw := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 1000}
	fn := func(_ context.Context, id string, _ time.Time) ([]float64, bool, error) {
		return []float64{raw[id]}, true, nil
	}

	_, err := p.Produce(ctx, Config{StoreID: "apm", Standardize: true},
		[]string{"A", "B", "C", "D", "E"}, d(2018, 1, 31), d(2018, 1, 31), fn)
	require.NoError(t, err)

	table, err := store.Load(ctx, "apm", "20180131")
	require.NoError(t, err)
	values := make([]float64, 0, 5)
	for _, id := range table.IDs() {
		v, _ := table.Value(id, domain.DefaultFactorField)
		values = append(values, v)
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, variance, 1e-12)
	assert.Greater(t, values[4], values[3])
	assert.Less(t, values[4], 2.0, "the outlier is clamped before scaling")
}

func TestProduce_Errors(t *testing.T) {
	p, _, _ := newProducer(t)
	fn := func(context.Context, string, time.Time) ([]float64, bool, error) { return []float64{1}, true, nil }

	_, err := p.Produce(context.Background(), Config{}, []string{"A"}, d(2018, 1, 1), d(2018, 1, 31), fn)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	keys, err := p.Produce(ctx, Config{StoreID: "apm"}, []string{"A"}, d(2018, 1, 1), d(2018, 1, 31), fn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, keys)
}

func TestWinsorize(t *testing.T) {
	values := []float64{1, 2, 3, 4, 100}
	Winsorize(values, MADMultiple)
	// median 3, MAD 1
	assert.Equal(t, []float64{1, 2, 3, 4, 3 + MADMultiple}, values)

	even := []float64{-50, 1, 2, 3}
	Winsorize(even, 1)
	// median 1.5, MAD 1
	assert.Equal(t, []float64{0.5, 1, 2, 2.5}, even)

	Winsorize(nil, 1)
}

func TestZScore(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	ZScore(values)
	// mean 5, population std 2
	assert.InDeltaSlice(t, []float64{-1.5, -0.5, -0.5, -0.5, 0, 0, 1, 2}, values, 1e-12)

	constant := []float64{3, 3, 3}
	ZScore(constant)
	assert.Equal(t, []float64{0, 0, 0}, constant)
}
