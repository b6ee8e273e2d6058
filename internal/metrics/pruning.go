package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prunedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_pruned_events_total",
			Help: "Total number of event rows deleted by pruning",
		},
		[]string{"chain_id"},
	)

	prunedVersions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_pruned_versions_total",
			Help: "Total number of state version rows deleted by pruning",
		},
		[]string{"chain_id"},
	)
)

// PrunedInc records a pruning pass's deletion counts for a chain.
func PrunedInc(chainID string, events, versions int64) {
	prunedEvents.WithLabelValues(chainID).Add(float64(events))
	prunedVersions.WithLabelValues(chainID).Add(float64(versions))
}
