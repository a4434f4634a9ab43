package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
	DocumentsIndexed   prometheus.Counter
	IndexRollbacks     prometheus.Counter
	RollbackFailures   prometheus.Counter
	AttemptsExhausted  prometheus.Counter
	OrphansDeleted     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verifid_validations_total",
			Help: "Validation attempts by terminal status",
		}, []string{"status"}),
		ValidationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verifid_validation_duration_seconds",
			Help:    "End-to-end validation pipeline duration",
			Buckets: prometheus.DefBuckets,
		}),
		DocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verifid_documents_indexed_total",
			Help: "Documents successfully indexed into the recognition collection",
		}),
		IndexRollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verifid_index_rollbacks_total",
			Help: "Compensating face deletions after a metadata persist failure",
		}),
		RollbackFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verifid_index_rollback_failures_total",
			Help: "Failed compensating deletions leaving the index and metadata diverged",
		}),
		AttemptsExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verifid_attempts_exhausted_total",
			Help: "Identity keys that hit the retry limit without a match",
		}),
		OrphansDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verifid_orphans_deleted_total",
			Help: "Orphaned faces or metadata rows removed by reconciliation",
		}),
	}
}
