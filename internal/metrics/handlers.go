package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_events_handled_total",
			Help: "Total number of events passed through the handler dispatcher",
		},
		[]string{"chain_id"},
	)

	handledUpToBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaindexor_handled_up_to_block",
			Help: "Highest block number a chain's handlers have processed up to",
		},
		[]string{"chain_id"},
	)

	handlerTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaindexor_handler_tick_duration_seconds",
			Help:    "Duration of one handler dispatch tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain_id"},
	)

	deferredMutationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chaindexor_deferred_mutation_errors_total",
			Help: "Total number of deferred multi-chain mutations that failed",
		},
	)
)

// HandledEventsInc records n newly-handled events for a chain.
func HandledEventsInc(chainID string, n int) {
	eventsHandled.WithLabelValues(chainID).Add(float64(n))
}

// HandledUpToBlockSet records the highest block number handled so far.
func HandledUpToBlockSet(chainID string, block uint64) {
	handledUpToBlock.WithLabelValues(chainID).Set(float64(block))
}

// HandlerTickDurationObserve records how long one handler tick took.
func HandlerTickDurationObserve(chainID string, d time.Duration) {
	handlerTickDuration.WithLabelValues(chainID).Observe(d.Seconds())
}

// DeferredMutationErrorsInc counts one failed deferred mutation.
func DeferredMutationErrorsInc() {
	deferredMutationErrors.Inc()
}
