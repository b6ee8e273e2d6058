package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeNodeCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chaindexor_active_node_count",
			Help: "Number of nodes considered active in the last election round",
		},
	)

	isLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chaindexor_is_leader",
			Help: "Whether this process is currently the elected leader (1) or not (0)",
		},
	)

	orchestratorState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chaindexor_orchestrator_state",
			Help: "Current orchestrator state: 0=idle, 1=active, 2=inactive, 3=aborted",
		},
	)
)

// ElectionRoundObserve records the outcome of one election round.
func ElectionRoundObserve(activeCount int, leader bool) {
	activeNodeCount.Set(float64(activeCount))
	if leader {
		isLeader.Set(1)
	} else {
		isLeader.Set(0)
	}
}

// OrchestratorStateSet records the orchestrator's current state as an int.
func OrchestratorStateSet(state int) {
	orchestratorState.Set(float64(state))
}
