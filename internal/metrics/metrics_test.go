package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRegistry(reg)
	require.NoError(t, err)

	r.RecordCacheLookup("apm", true)
	r.RecordCacheLookup("apm", false)
	r.RecordCacheLookup("apm", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheHits.WithLabelValues("apm")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheMisses.WithLabelValues("apm")))

	_, err = NewRegistry(reg)
	assert.Error(t, err, "registering twice on the same registerer must fail")
}

func TestRegistry_BacktestMetrics(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	r.RecordRebalance("apm", 12)
	r.RecordRebalance("apm", 9)
	r.RecordDay("apm", 1.0)
	r.RecordDay("apm", 1.05)
	r.RecordProducedTable("apm")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Rebalances.WithLabelValues("apm")))
	assert.Equal(t, 9.0, testutil.ToFloat64(r.Selected.WithLabelValues("apm")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.SimulatedDays.WithLabelValues("apm")))
	assert.Equal(t, 1.05, testutil.ToFloat64(r.LatestNAV.WithLabelValues("apm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProducedTables.WithLabelValues("apm")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordCacheLookup("apm", true)
		r.RecordRebalance("apm", 1)
		r.RecordDay("apm", 1)
		r.RecordProducedTable("apm")
	})
}
