// Package tradability decides whether an instrument could be traded on a day
// given suspensions and daily price limits.
package tradability

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// FlatRangeEpsilon is the largest high-low range still treated as a one-price session.
	FlatRangeEpsilon = 0.01
	// LimitUpRatio approximates a +10% limit net of price rounding.
	LimitUpRatio = 1.099
	// LimitDownRatio approximates a -10% limit net of price rounding.
	LimitDownRatio = 0.901
)

// Classify decides the status from the previous and current unadjusted bars.
// A nil current bar means the instrument did not trade. A nil previous bar
// makes the current open the reference price.
func Classify(prev, cur *domain.Bar) domain.TradingStatus {
	if cur == nil {
		return domain.StatusSuspended
	}
	if math.Abs(cur.High-cur.Low) > FlatRangeEpsilon {
		return domain.StatusNormal
	}

	ref := cur.Open
	if prev != nil {
		ref = prev.Close
	}
	switch {
	case cur.Low > ref*LimitUpRatio:
		return domain.StatusLimitUp
	case cur.High < ref*LimitDownRatio:
		return domain.StatusLimitDown
	default:
		return domain.StatusNormal
	}
}

// Classifier looks up bars and classifies them.
type Classifier struct {
	market domain.MarketDataRepository
	log    zerolog.Logger
}

// NewClassifier creates a classifier over a market data repository
func NewClassifier(market domain.MarketDataRepository, log zerolog.Logger) *Classifier {
	return &Classifier{
		market: market,
		log:    log.With().Str("component", "tradability").Logger(),
	}
}

// Status implements domain.StatusClassifier. The previous bar is the latest
// one strictly before date, so a suspension gap does not hide a limit move.
func (c *Classifier) Status(instrumentID string, date time.Time) (domain.TradingStatus, error) {
	date = domain.Day(date)

	cur, err := c.market.DailyBar(instrumentID, date, false, false)
	if err != nil {
		return domain.StatusNormal, fmt.Errorf("failed to load bar of %s: %w", instrumentID, err)
	}
	if cur == nil {
		return domain.StatusSuspended, nil
	}

	prev, err := c.market.DailyBar(instrumentID, date.AddDate(0, 0, -1), false, true)
	if err != nil {
		return domain.StatusNormal, fmt.Errorf("failed to load previous bar of %s: %w", instrumentID, err)
	}

	status := Classify(prev, cur)
	if status != domain.StatusNormal {
		c.log.Debug().
			Str("instrument_id", instrumentID).
			Str("date", date.Format(domain.DateLayout)).
			Str("status", status.String()).
			Msg("Instrument not freely tradable")
	}
	return status, nil
}
