// Package calendar provides the immutable trading calendar a backtest runs on.
package calendar

import (
	"sort"
	"time"

	"github.com/aristath/factorlab/internal/domain"
)

// Calendar is an ordered, deduplicated set of trading days. It is built once
// per run and never mutated, so it can be shared freely between goroutines.
type Calendar struct {
	days []time.Time
}

// New builds a calendar from any collection of session dates.
// Dates are truncated to midnight UTC, sorted and deduplicated.
func New(days []time.Time) *Calendar {
	normalized := make([]time.Time, 0, len(days))
	for _, d := range days {
		normalized = append(normalized, domain.Day(d))
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Before(normalized[j]) })

	unique := make([]time.Time, 0, len(normalized))
	for _, d := range normalized {
		if len(unique) == 0 || !d.Equal(unique[len(unique)-1]) {
			unique = append(unique, d)
		}
	}
	return &Calendar{days: unique}
}

// Len returns the number of trading days known to the calendar.
func (c *Calendar) Len() int {
	return len(c.days)
}

// First returns the earliest trading day.
func (c *Calendar) First() (time.Time, bool) {
	if len(c.days) == 0 {
		return time.Time{}, false
	}
	return c.days[0], true
}

// Last returns the latest trading day.
func (c *Calendar) Last() (time.Time, bool) {
	if len(c.days) == 0 {
		return time.Time{}, false
	}
	return c.days[len(c.days)-1], true
}

// search returns the index of the first day >= date.
func (c *Calendar) search(date time.Time) int {
	date = domain.Day(date)
	return sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(date) })
}

// IsTradingDay reports whether date is a session.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	i := c.search(date)
	return i < len(c.days) && c.days[i].Equal(domain.Day(date))
}

// TradingDays returns the sessions in [start, end], ascending.
// The returned slice is a copy.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	from := c.search(start)
	to := c.search(domain.Day(end).AddDate(0, 0, 1))
	if from >= to {
		return nil
	}
	out := make([]time.Time, to-from)
	copy(out, c.days[from:to])
	return out
}

// PrevTradingDay returns the last session strictly before date.
func (c *Calendar) PrevTradingDay(date time.Time) (time.Time, bool) {
	i := c.search(date)
	if i == 0 {
		return time.Time{}, false
	}
	return c.days[i-1], true
}

// NextTradingDay returns the first session strictly after date.
func (c *Calendar) NextTradingDay(date time.Time) (time.Time, bool) {
	i := c.search(domain.Day(date).AddDate(0, 0, 1))
	if i >= len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// IsMonthStart reports whether date is the first session of its month.
// The first session the calendar knows of counts as a month start.
func (c *Calendar) IsMonthStart(date time.Time) bool {
	if !c.IsTradingDay(date) {
		return false
	}
	prev, ok := c.PrevTradingDay(date)
	if !ok {
		return true
	}
	return !sameMonth(prev, date)
}

// IsMonthEnd reports whether date is the last session of its month.
// The last known session is never a month end, since later sessions of the
// same month may not be loaded yet.
func (c *Calendar) IsMonthEnd(date time.Time) bool {
	if !c.IsTradingDay(date) {
		return false
	}
	next, ok := c.NextTradingDay(date)
	if !ok {
		return false
	}
	return !sameMonth(next, date)
}

// MonthEnds returns the month-end sessions within [start, end].
func (c *Calendar) MonthEnds(start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range c.TradingDays(start, end) {
		if c.IsMonthEnd(d) {
			out = append(out, d)
		}
	}
	return out
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
