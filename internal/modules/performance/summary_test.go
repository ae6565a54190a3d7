package performance

import (
	"math"
	"testing"

	"github.com/aristath/factorlab/internal/domain"
	testingpkg "github.com/aristath/factorlab/internal/testing"
	"github.com/stretchr/testify/assert"
)

func series(navs ...float64) domain.NavSeries {
	days := testingpkg.NewTradingDays(testingpkg.Date(2018, 1, 1), testingpkg.Date(2018, 12, 31))
	s := make(domain.NavSeries, len(navs))
	for i, v := range navs {
		s[i] = domain.NavPoint{Date: days[i], NAV: v}
	}
	return s
}

func TestSummarize(t *testing.T) {
	s := Summarize(series(1.0, 1.1, 0.99, 1.2))

	assert.Equal(t, 4, s.Days)
	assert.InDelta(t, 0.2, s.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1.2, 242.0/3)-1, s.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.1, s.MaxDrawdown, 1e-12)
	assert.Greater(t, s.AnnualizedVolatility, 0.0)
	assert.Greater(t, s.Sharpe, 0.0)
}

func TestSummarize_Degenerate(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Days: 1}, Summarize(series(1.0)))

	flat := Summarize(series(1, 1, 1))
	assert.Equal(t, 0.0, flat.TotalReturn)
	assert.Equal(t, 0.0, flat.AnnualizedVolatility)
	assert.Equal(t, 0.0, flat.Sharpe)
	assert.Equal(t, 0.0, flat.MaxDrawdown)
}

func TestDailyReturns(t *testing.T) {
	r := DailyReturns(series(1, 1.1, 0.99))
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, r, 1e-12)
	assert.Nil(t, DailyReturns(series(1)))
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{1, 2, 1.5, 1, 3, 2.5}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}
