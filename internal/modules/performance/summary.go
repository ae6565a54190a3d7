// Package performance summarizes a NAV series into return and risk figures.
package performance

import (
	"math"

	"github.com/aristath/factorlab/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily figures.
const TradingDaysPerYear = 242

// Summary holds the headline statistics of a NAV series.
type Summary struct {
	Days                 int     `json:"days"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"` // positive fraction of the peak
	Sharpe               float64 `json:"sharpe"`       // zero risk-free rate
}

// DailyReturns returns nav[i]/nav[i-1] - 1 for every consecutive pair.
func DailyReturns(series domain.NavSeries) []float64 {
	if len(series) < 2 {
		return nil
	}
	returns := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns[i-1] = series[i].NAV/series[i-1].NAV - 1
	}
	return returns
}

// Summarize computes the summary of series. Fewer than two points give a zero Summary.
func Summarize(series domain.NavSeries) Summary {
	s := Summary{Days: len(series)}
	if len(series) < 2 {
		return s
	}

	navs := series.Values()
	first, last := navs[0], navs[len(navs)-1]
	s.TotalReturn = last/first - 1

	periods := float64(len(navs) - 1)
	s.AnnualizedReturn = math.Pow(last/first, TradingDaysPerYear/periods) - 1

	returns := DailyReturns(series)
	if len(returns) > 1 {
		mean, std := stat.MeanStdDev(returns, nil)
		s.AnnualizedVolatility = std * math.Sqrt(TradingDaysPerYear)
		if std > 0 {
			s.Sharpe = mean / std * math.Sqrt(TradingDaysPerYear)
		}
	}

	s.MaxDrawdown = MaxDrawdown(navs)
	return s
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func MaxDrawdown(navs []float64) float64 {
	if len(navs) == 0 {
		return 0
	}
	drawdowns := make([]float64, len(navs))
	peak := navs[0]
	for i, v := range navs {
		peak = math.Max(peak, v)
		drawdowns[i] = 1 - v/peak
	}
	return floats.Max(drawdowns)
}
