// Package metrics holds the Prometheus collectors for factor store lookups and backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for factorlab.
// A nil *Registry is valid and records nothing.
type Registry struct {
	// Factor store cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Backtest metrics
	Rebalances    *prometheus.CounterVec
	SimulatedDays *prometheus.CounterVec
	Selected      *prometheus.GaugeVec
	LatestNAV     *prometheus.GaugeVec

	// Producer metrics
	ProducedTables *prometheus.CounterVec
}

// NewRegistry creates the collectors and registers them on reg when reg is non-nil.
func NewRegistry(reg prometheus.Registerer) (*Registry, error) {
	r := &Registry{
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_factor_cache_hits_total",
				Help: "Total number of factor table cache hits by store",
			},
			[]string{"store_id"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_factor_cache_misses_total",
				Help: "Total number of factor table cache misses by store",
			},
			[]string{"store_id"},
		),
		Rebalances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_backtest_rebalances_total",
				Help: "Total number of completed rebalances by store",
			},
			[]string{"store_id"},
		),
		SimulatedDays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_backtest_days_total",
				Help: "Total number of simulated trading days by store",
			},
			[]string{"store_id"},
		),
		Selected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factorlab_backtest_selected_instruments",
				Help: "Number of instruments held after the latest rebalance",
			},
			[]string{"store_id"},
		),
		LatestNAV: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factorlab_backtest_nav",
				Help: "Net asset value at the end of the latest simulated day",
			},
			[]string{"store_id"},
		),
		ProducedTables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_producer_tables_total",
				Help: "Total number of factor tables persisted by store",
			},
			[]string{"store_id"},
		),
	}

	if reg != nil {
		for _, c := range r.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (r *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.CacheHits,
		r.CacheMisses,
		r.Rebalances,
		r.SimulatedDays,
		r.Selected,
		r.LatestNAV,
		r.ProducedTables,
	}
}

// RecordCacheLookup records a factor table cache hit or miss
func (r *Registry) RecordCacheLookup(storeID string, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.WithLabelValues(storeID).Inc()
	} else {
		r.CacheMisses.WithLabelValues(storeID).Inc()
	}
}

// RecordRebalance records a completed rebalance and the resulting holding count
func (r *Registry) RecordRebalance(storeID string, selected int) {
	if r == nil {
		return
	}
	r.Rebalances.WithLabelValues(storeID).Inc()
	r.Selected.WithLabelValues(storeID).Set(float64(selected))
}

// RecordDay records one simulated day and its closing NAV
func (r *Registry) RecordDay(storeID string, nav float64) {
	if r == nil {
		return
	}
	r.SimulatedDays.WithLabelValues(storeID).Inc()
	r.LatestNAV.WithLabelValues(storeID).Set(nav)
}

// RecordProducedTable records one persisted factor table
func (r *Registry) RecordProducedTable(storeID string) {
	if r == nil {
		return
	}
	r.ProducedTables.WithLabelValues(storeID).Inc()
}
