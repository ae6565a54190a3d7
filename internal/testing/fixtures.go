package testing

import (
	"time"

	"github.com/aristath/factorlab/internal/domain"
)

// Date builds a midnight UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FlatBar returns a traded bar whose VWAP, open, high, low and close all equal price.
func FlatBar(date time.Time, price float64) domain.Bar {
	return domain.Bar{
		Date:         date,
		Open:         price,
		High:         price,
		Low:          price,
		Close:        price,
		Volume:       1000,
		Amount:       price * 1000,
		AdjustFactor: 1,
	}
}

// RangeBar returns a traded bar with the given range and close; VWAP equals close.
func RangeBar(date time.Time, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Date:         date,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        close,
		Volume:       1000,
		Amount:       close * 1000,
		AdjustFactor: 1,
	}
}

// NewTradingDays returns the weekdays between start and end inclusive.
func NewTradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}
