package domain

import "time"

// MarketDataRepository supplies daily bars.
// A missing bar is reported as (nil, nil), never as an error.
type MarketDataRepository interface {
	// DailyBar returns the bar of instrumentID on date. With nearestLEQ the
	// most recent bar on or before date is returned instead.
	DailyBar(instrumentID string, date time.Time, adjusted bool, nearestLEQ bool) (*Bar, error)
}

// TradingCalendar is an immutable, ordered set of trading days.
type TradingCalendar interface {
	TradingDays(start, end time.Time) []time.Time
	IsMonthStart(date time.Time) bool
	IsMonthEnd(date time.Time) bool
	PrevTradingDay(date time.Time) (time.Time, bool)
}

// StatusClassifier decides whether an instrument could trade on a day.
type StatusClassifier interface {
	Status(instrumentID string, date time.Time) (TradingStatus, error)
}
