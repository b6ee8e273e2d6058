// Package common holds small helpers shared across the indexer's components.
package common

// Component names used to tag loggers and metrics so that log lines and
// series can be attributed to the part of the pipeline that produced them.
const (
	ComponentProvider        = "provider"
	ComponentIngester        = "ingester"
	ComponentReorgDetector   = "reorg-detector"
	ComponentHandlerDispatch = "handler-dispatcher"
	ComponentReorgHandler    = "reorg-handler"
	ComponentPruner          = "pruner"
	ComponentNodeRegistry    = "node-registry"
	ComponentOrchestrator    = "orchestrator"
	ComponentMetrics         = "metrics"
)

// AllComponents lists every component name, mainly useful for building
// per-component logger/metric fixtures in tests.
var AllComponents = []string{
	ComponentProvider,
	ComponentIngester,
	ComponentReorgDetector,
	ComponentHandlerDispatch,
	ComponentReorgHandler,
	ComponentPruner,
	ComponentNodeRegistry,
	ComponentOrchestrator,
	ComponentMetrics,
}
