// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the 8-digit calendar date used to key factor tables and snapshots.
const DateKeyLayout = "20060102"

// DateLayout is the dashed date used in persisted records.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as YYYYMMDD.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYYMMDD key.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// Bar is one instrument's daily trade record.
// Amount and Volume are always unadjusted; OHLC carry AdjustFactor already applied.
type Bar struct {
	Date         time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	Amount       float64   `json:"amount"`
	AdjustFactor float64   `json:"adjust_factor"`
}

// HasTrades reports whether the session traded at all. No valuation is
// possible from a bar without volume.
func (b Bar) HasTrades() bool {
	return b.Volume > 0
}

// VWAP returns amount / volume scaled by the adjust factor.
func (b Bar) VWAP() (float64, bool) {
	if !b.HasTrades() {
		return 0, false
	}
	factor := b.AdjustFactor
	if factor == 0 {
		factor = 1
	}
	return b.Amount / b.Volume * factor, true
}

// TradingStatus classifies whether an instrument could trade on a day.
type TradingStatus int

const (
	StatusNormal TradingStatus = iota
	StatusSuspended
	StatusLimitUp
	StatusLimitDown
)

func (s TradingStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusSuspended:
		return "suspended"
	case StatusLimitUp:
		return "limit_up"
	case StatusLimitDown:
		return "limit_down"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Holding is one position of a portfolio. Quantity is fixed at creation.
type Holding struct {
	InstrumentID string    `json:"instrument_id"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	EntryDate    time.Time `json:"entry_date"`
}

// Portfolio is the set of holdings bought on Date with Basis currency units.
// It is replaced wholesale on every rebalance.
type Portfolio struct {
	Date     time.Time `json:"date"`
	Holdings []Holding `json:"holdings"`
	Basis    float64   `json:"basis"`
}

// IsEmpty reports whether the portfolio holds nothing.
func (p *Portfolio) IsEmpty() bool {
	return p == nil || len(p.Holdings) == 0
}

// NavPoint is the net asset value at the end of one trading day.
type NavPoint struct {
	Date time.Time `json:"date"`
	NAV  float64   `json:"nav"`
}

// NavSeries is an append-only, strictly date-ordered NAV history.
type NavSeries []NavPoint

// Last returns the most recent point.
func (s NavSeries) Last() (NavPoint, bool) {
	if len(s) == 0 {
		return NavPoint{}, false
	}
	return s[len(s)-1], true
}

// Values returns the NAV values in date order.
func (s NavSeries) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.NAV
	}
	return values
}

// Before returns the prefix of points dated strictly before date.
func (s NavSeries) Before(date time.Time) NavSeries {
	date = Day(date)
	for i, p := range s {
		if !p.Date.Before(date) {
			return s[:i]
		}
	}
	return s
}
