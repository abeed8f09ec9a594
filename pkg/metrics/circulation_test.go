package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCirculationCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCirculation(reg)

	m.ObserveOperation("borrow", "ok", 20*time.Millisecond)
	m.ObserveOperation("borrow", "INSUFFICIENT_STOCK", time.Millisecond)
	m.ObserveOperation("borrow", "ok", time.Millisecond)
	m.IncAuditFailure("store")
	m.AddBulkSkipped("delete_titles", 3)
	m.AddBulkSkipped("delete_titles", 0)

	require.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("borrow", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("borrow", "INSUFFICIENT_STOCK")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.auditFailures.WithLabelValues("store")))
	require.Equal(t, float64(3), testutil.ToFloat64(m.bulkSkipped.WithLabelValues("delete_titles")))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestCirculationNilSafe(t *testing.T) {
	var m *Circulation
	require.NotPanics(t, func() {
		m.ObserveOperation("borrow", "ok", time.Second)
		m.IncAuditFailure("publish")
		m.AddBulkSkipped("return_loans", 1)
	})

	empty := NewCirculation(nil)
	require.NotPanics(t, func() {
		empty.ObserveOperation("", "", 0)
	})
}
