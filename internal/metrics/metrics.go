// Package metrics exposes the process's Prometheus instrumentation: pool
// counts per scheduler tier, execution-result outcome counters, and nonce
// bookkeeping gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PoolsPerTier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lstarb",
		Name:      "pools_per_tier",
		Help:      "Number of pools currently assigned to each scheduler tier.",
	}, []string{"tier"})

	ExecutionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lstarb",
		Name:      "execution_results_total",
		Help:      "Count of ExecutionResult transitions by kind.",
	}, []string{"kind"})

	OpportunitiesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lstarb",
		Name:      "opportunities_detected_total",
		Help:      "Count of detected opportunities by scheduler tier.",
	}, []string{"tier"})

	CurrentNonce = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lstarb",
		Name:      "current_nonce",
		Help:      "The next nonce the submission pipeline will issue.",
	})

	PendingTxCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lstarb",
		Name:      "pending_tx_count",
		Help:      "Number of transactions currently tracked awaiting a terminal receipt.",
	})

	ResubmitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lstarb",
		Name:      "resubmit_total",
		Help:      "Total number of resubmission attempts issued by the submission pipeline.",
	})

	QuoteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lstarb",
		Name:      "quote_fetch_duration_seconds",
		Help:      "Latency of a scheduler tier's batched quote fetch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tier"})
)

// RecordExecutionResult increments the ExecutionResults counter for one
// terminal or in-flight Kind string ("submitted", "confirmed", "reverted",
// "aborted", "failed").
func RecordExecutionResult(kind string) {
	ExecutionResults.WithLabelValues(kind).Inc()
}
