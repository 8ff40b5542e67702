// Package metrics exposes Prometheus counters/histograms for the five
// pipeline workers, grounded on the promauto registration pattern used
// elsewhere in the retrieved corpus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tariproject/payment-processor/internal/config"
)

var (
	// WorkerTicks counts each poll tick per worker, whether or not it found
	// work to claim.
	WorkerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "worker_ticks_total",
		Help:      "Total poll ticks per worker.",
	}, []string{"worker"})

	// WorkerClaims counts rows successfully claimed per worker.
	WorkerClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "worker_claims_total",
		Help:      "Total batches claimed per worker.",
	}, []string{"worker"})

	// WorkerRetries counts retry-and-requeue outcomes per worker.
	WorkerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "worker_retries_total",
		Help:      "Total retries recorded per worker.",
	}, []string{"worker"})

	// WorkerFailures counts terminal Failed transitions per worker and reason.
	WorkerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "worker_failures_total",
		Help:      "Total terminal failures recorded per worker, labeled by reason.",
	}, []string{"worker", "reason"})

	// StuckClaimsRecovered counts rows reverted by stuck-claim recovery.
	StuckClaimsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "stuck_claims_recovered_total",
		Help:      "Total batches reverted from a stuck in-progress claim.",
	}, []string{"worker"})

	// BatchCycleDuration is a histogram of wall-clock time from batch
	// creation to a terminal status, labeled by outcome. It is registered
	// and exposed, but no worker records observations into it.
	BatchCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.MetricsNamespace,
		Name:      "batch_cycle_duration_seconds",
		Help:      "Time from batch creation to terminal status.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
	}, []string{"outcome"})

	// ConsolidationCycles counts consolidation loopbacks (the Broadcasting ->
	// PendingBatching backward arc).
	ConsolidationCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: config.MetricsNamespace,
		Name:      "consolidation_cycles_total",
		Help:      "Total consolidation split loopbacks across all batches.",
	})
)
