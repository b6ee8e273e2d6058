package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_reorgs_detected_total",
			Help: "Total number of reorgs detected",
		},
		[]string{"chain_id"},
	)

	reorgedEventsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_reorg_events_added_total",
			Help: "Total number of events added while repairing a reorg",
		},
		[]string{"chain_id"},
	)

	reorgedEventsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_reorg_events_removed_total",
			Help: "Total number of events removed while repairing a reorg",
		},
		[]string{"chain_id"},
	)

	reorgsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaindexor_reorgs_handled_total",
			Help: "Total number of reorgs the reorg handler has backtracked state for",
		},
		[]string{"chain_id"},
	)
)

// ReorgDetectedInc records one detected reorg with added/removed event counts.
func ReorgDetectedInc(chainID string, added, removed int) {
	reorgsDetected.WithLabelValues(chainID).Inc()
	reorgedEventsAdded.WithLabelValues(chainID).Add(float64(added))
	reorgedEventsRemoved.WithLabelValues(chainID).Add(float64(removed))
}

// ReorgsHandledInc records one chain's reorg backtrack having completed.
func ReorgsHandledInc(chainID string) {
	reorgsHandled.WithLabelValues(chainID).Inc()
}
