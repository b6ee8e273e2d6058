// Package config implements the indexer's configuration surface: chain
// endpoints, batching/rate knobs, pruning and election tuning, and the
// ambient database/logging/metrics settings, loaded through a
// LoadFromFile -> ApplyDefaults -> Validate sequence, YAML-only.
package config

import "fmt"

// Config is the full runtime configuration surface for a chaindexor process.
// Contract registration (ABI, handlers, state migrations) is a Go-side
// concern wired through pkg/chaindexor.Contract, since handlers are code,
// not YAML data; everything here is the declarative, file-loadable part.
type Config struct {
	Chains []ChainConfig `yaml:"chains"`

	MinConfirmationCount uint64 `yaml:"min_confirmation_count"`
	BlocksPerBatch       uint64 `yaml:"blocks_per_batch"`

	IngestionRateMs    int64 `yaml:"ingestion_rate_ms"`
	HandlerRateMs      int64 `yaml:"handler_rate_ms"`
	NodeElectionRateMs int64 `yaml:"node_election_rate_ms"`

	ResetCount                     uint64   `yaml:"reset_count"`
	ResetIncludingSideEffectsCount uint64   `yaml:"reset_including_side_effects_count"`
	ResetQueries                   []string `yaml:"reset_queries"`

	MaxConcurrentNodeCount int `yaml:"max_concurrent_node_count"`
	ChainConcurrency       int `yaml:"chain_concurrency"`

	PruningConfig     *PruningConfig     `yaml:"pruning_config"`
	OptimizationConfig *OptimizationConfig `yaml:"optimization_config"`

	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  *MetricsConfig `yaml:"metrics"`
}

// ChainConfig names one chain to index and the RPC endpoint to read it from.
type ChainConfig struct {
	ID         uint64 `yaml:"id"`
	JSONRPCURL string `yaml:"json_rpc_url"`
}

// PruningConfig bounds storage growth.
type PruningConfig struct {
	PruneNBlocksAway uint64 `yaml:"prune_n_blocks_away"`
	PruneIntervalMs  int64  `yaml:"prune_interval_ms"`
}

// OptimizationConfig tunes the orchestrator's idle-mode behavior.
type OptimizationConfig struct {
	HeartbeatGraceMs int64 `yaml:"heartbeat_grace_ms"`
	StartAfterInSecs int64 `yaml:"start_after_in_secs"`
}

// DatabaseConfig describes the Postgres connection the core persists to.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections"`
	ConnMaxLifetimeMs  int64  `yaml:"conn_max_lifetime_ms"`
}

// LoggingConfig configures the zap-backed logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig configures the Prometheus /metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

const (
	defaultIngestionRateMs      = 1000
	defaultHandlerRateMs        = 1000
	defaultBlocksPerBatch       = 200
	defaultMaxConcurrentNodes   = 3
	defaultChainConcurrency     = 4
	defaultMaxOpenConnections   = 20
	defaultMaxIdleConnections   = 5
	defaultConnMaxLifetimeMs    = 300_000
	defaultLogLevel             = "info"
	defaultMetricsListenAddress = ":9100"
	defaultMetricsPath          = "/metrics"
)

// ApplyDefaults fills in zero-valued fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.IngestionRateMs == 0 {
		c.IngestionRateMs = defaultIngestionRateMs
	}
	if c.HandlerRateMs == 0 {
		c.HandlerRateMs = defaultHandlerRateMs
	}
	if c.NodeElectionRateMs == 0 {
		// Defaults to ingestion_rate_ms.
		c.NodeElectionRateMs = c.IngestionRateMs
	}
	if c.BlocksPerBatch == 0 {
		c.BlocksPerBatch = defaultBlocksPerBatch
	}
	if c.MaxConcurrentNodeCount == 0 {
		c.MaxConcurrentNodeCount = defaultMaxConcurrentNodes
	}
	if c.ChainConcurrency == 0 {
		c.ChainConcurrency = defaultChainConcurrency
	}
	if c.Database.MaxOpenConnections == 0 {
		c.Database.MaxOpenConnections = defaultMaxOpenConnections
	}
	if c.Database.MaxIdleConnections == 0 {
		c.Database.MaxIdleConnections = defaultMaxIdleConnections
	}
	if c.Database.ConnMaxLifetimeMs == 0 {
		c.Database.ConnMaxLifetimeMs = defaultConnMaxLifetimeMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Metrics != nil {
		if c.Metrics.ListenAddress == "" {
			c.Metrics.ListenAddress = defaultMetricsListenAddress
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = defaultMetricsPath
		}
	}
}

// Validate rejects configurations the core cannot boot with. A missing chain
// or a missing database DSN are fatal configuration errors.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("config: at least one chain is required")
	}
	seen := make(map[uint64]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.JSONRPCURL == "" {
			return fmt.Errorf("config: chain %d is missing json_rpc_url", chain.ID)
		}
		if seen[chain.ID] {
			return fmt.Errorf("config: duplicate chain id %d", chain.ID)
		}
		seen[chain.ID] = true
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if c.MinConfirmationCount == 0 {
		return fmt.Errorf("config: min_confirmation_count must be greater than zero")
	}
	return nil
}
