package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the signing flow.
type Metrics struct {
	SignaturesRecorded  *prometheus.CounterVec
	SignatureFailures   *prometheus.CounterVec
	SealFailures        prometheus.Counter
	OutboxEnqueueErrors prometheus.Counter
	SignDuration        prometheus.Histogram
}

// New creates and registers all signing metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on the given registerer. Tests pass a
// fresh registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignaturesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "countersign_signatures_recorded_total",
			Help: "Signatures durably recorded, by signer role",
		}, []string{"role"}),
		SignatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "countersign_signature_failures_total",
			Help: "Signing requests rejected or rolled back, by reason",
		}, []string{"reason"}),
		SealFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "countersign_seal_failures_total",
			Help: "Seal invocations that failed and were queued for retry",
		}),
		OutboxEnqueueErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "countersign_outbox_enqueue_errors_total",
			Help: "Outbox appends that failed and were dropped after logging",
		}),
		SignDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "countersign_sign_duration_seconds",
			Help:    "End-to-end latency of signing requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
