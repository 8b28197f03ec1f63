package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records outcomes of cart and wishlist synchronization
// operations against the remote store.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	rollback *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_op_duration_seconds",
		Help:    "Duration of remote store synchronization operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_op_success",
		Help: "Successful synchronization operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_op_failure",
		Help: "Failed synchronization operations.",
	}, []string{"op"})
	rollback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_op_rollback",
		Help: "Optimistic mutations rolled back after a remote failure.",
	}, []string{"op"})
	reg.MustRegister(duration, success, failure, rollback)
	return &SyncMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		rollback: rollback,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *SyncMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *SyncMetrics) IncSuccess(op string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *SyncMetrics) IncFailure(op string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncRollback increments the rollback counter for the named operation.
func (m *SyncMetrics) IncRollback(op string) {
	if m == nil || m.rollback == nil {
		return
	}
	m.rollback.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
