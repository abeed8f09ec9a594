package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Circulation records outcomes of circulation operations and audit delivery.
type Circulation struct {
	duration      *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	auditFailures *prometheus.CounterVec
	bulkSkipped   *prometheus.CounterVec
}

// NewCirculation registers the circulation metrics on the provided registerer.
// A nil registerer yields a collector that records nothing.
func NewCirculation(reg prometheus.Registerer) *Circulation {
	if reg == nil {
		return &Circulation{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circulation_operation_duration_seconds",
		Help:    "Duration of circulation operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_operations_total",
		Help: "Circulation operations by outcome.",
	}, []string{"op", "outcome"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_audit_failures_total",
		Help: "Audit entries that could not be stored or forwarded.",
	}, []string{"stage"})
	bulkSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circulation_bulk_skipped_total",
		Help: "Bulk items skipped because a precondition failed.",
	}, []string{"action"})
	reg.MustRegister(duration, operations, auditFailures, bulkSkipped)
	return &Circulation{
		duration:      duration,
		operations:    operations,
		auditFailures: auditFailures,
		bulkSkipped:   bulkSkipped,
	}
}

// ObserveOperation records the duration and outcome of op.
func (c *Circulation) ObserveOperation(op, outcome string, duration time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op = normalizeLabel(op)
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
	c.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
}

func (c *Circulation) IncAuditFailure(stage string) {
	if c == nil || c.auditFailures == nil {
		return
	}
	c.auditFailures.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (c *Circulation) AddBulkSkipped(action string, n int) {
	if c == nil || c.bulkSkipped == nil || n <= 0 {
		return
	}
	c.bulkSkipped.WithLabelValues(normalizeLabel(action)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
