package testing

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/factorlab/internal/domain"
)

// MockMarketData is an in-memory MarketDataRepository.
// Bars are stored already adjusted; unadjusted lookups divide by AdjustFactor.
type MockMarketData struct {
	mu    sync.RWMutex
	bars  map[string][]domain.Bar
	err   error
	calls int
}

// NewMockMarketData creates an empty mock repository
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{bars: make(map[string][]domain.Bar)}
}

// AddBars appends bars for an instrument, keeping them date ordered
func (m *MockMarketData) AddBars(instrumentID string, bars ...domain.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := append(m.bars[instrumentID], bars...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	m.bars[instrumentID] = merged
}

// SetError sets the error to return from every lookup
func (m *MockMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many lookups were served
func (m *MockMarketData) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// DailyBar implements domain.MarketDataRepository
func (m *MockMarketData) DailyBar(instrumentID string, date time.Time, adjusted bool, nearestLEQ bool) (*domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	date = domain.Day(date)
	var found *domain.Bar
	for i := range m.bars[instrumentID] {
		bar := m.bars[instrumentID][i]
		if bar.Date.After(date) {
			break
		}
		if bar.Date.Equal(date) || nearestLEQ {
			b := bar
			found = &b
		}
	}
	if found == nil || (!nearestLEQ && !found.Date.Equal(date)) {
		return nil, nil
	}

	if !adjusted {
		factor := found.AdjustFactor
		if factor == 0 {
			factor = 1
		}
		found.Open /= factor
		found.High /= factor
		found.Low /= factor
		found.Close /= factor
		found.AdjustFactor = 1
	}
	return found, nil
}
