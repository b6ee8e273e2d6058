package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_events_ingested_total",
			Help: "Total number of events persisted by the ingestion engine",
		},
		[]string{"chain_id"},
	)

	ingestedUpToBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaindexor_ingested_up_to_block",
			Help: "Highest block number a chain's contracts have ingested up to",
		},
		[]string{"chain_id"},
	)

	ingestionTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaindexor_ingestion_tick_duration_seconds",
			Help:    "Duration of one ingestion tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain_id"},
	)
)

// IngestedEventsInc records a batch of n newly-ingested events for a chain.
func IngestedEventsInc(chainID string, n int) {
	eventsIngested.WithLabelValues(chainID).Add(float64(n))
}

// IngestedUpToBlockSet records the highest block number ingested so far.
func IngestedUpToBlockSet(chainID string, block uint64) {
	ingestedUpToBlock.WithLabelValues(chainID).Set(float64(block))
}

// IngestionTickDurationObserve records how long one ingestion tick took.
func IngestionTickDurationObserve(chainID string, d time.Duration) {
	ingestionTickDuration.WithLabelValues(chainID).Observe(d.Seconds())
}
