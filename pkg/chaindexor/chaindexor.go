package chaindexor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/config"
	"github.com/goran-ethernal/chaindexor/internal/contracts"
	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/migrations"
	"github.com/goran-ethernal/chaindexor/internal/orchestrator"
	"github.com/goran-ethernal/chaindexor/internal/rootstate"
)

// Config is everything Setup needs: the declarative configuration
// surface plus the Go-side contract definitions and the opaque shared state
// side-effect handlers receive.
type Config struct {
	Core        config.Config
	Contracts   []Contract
	SharedState interface{}
	Logger      *logger.Logger
}

// Indexer is a fully wired, not-yet-running chaindexor process.
type Indexer struct {
	cfg Config
	db  *sql.DB
	log *logger.Logger

	metricsServer *metrics.Server
	heartbeat     *orchestrator.Heartbeat
	orch          *orchestrator.Orchestrator
	stateTables   []string
}

// Setup validates configuration, opens the database, runs migrations, and
// wires every component, returning an Indexer ready for Start.
func Setup(cfg Config) (*Indexer, error) {
	cfg.Core.ApplyDefaults()
	if err := cfg.Core.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		built, err := logger.NewLogger(cfg.Core.Logging.Level, cfg.Core.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("chaindexor: failed to build logger: %w", err)
		}
		log = built
	}

	database, err := dbpkg.NewPostgresDB(cfg.Core.Database)
	if err != nil {
		return nil, err
	}

	if err := migrations.RunCore(database); err != nil {
		return nil, err
	}

	var stateTables []string
	var stateMigs []migrations.StateMigration
	for _, c := range cfg.Contracts {
		stateMigs = append(stateMigs, c.StateMigrations...)
		stateTables = append(stateTables, c.stateTables()...)
	}

	if err := maybeReset(database, cfg.Core, stateTables); err != nil {
		return nil, err
	}

	if len(stateMigs) > 0 {
		if err := migrations.RunStateMigrations(database, stateMigs); err != nil {
			return nil, err
		}
	}

	for _, c := range cfg.Contracts {
		if len(c.SeedAddresses) == 0 {
			continue
		}
		if err := contracts.UpsertSeeded(context.Background(), database, c.SeedAddresses); err != nil {
			return nil, err
		}
	}

	var metricsServer *metrics.Server
	if cfg.Core.Metrics != nil {
		metricsServer = metrics.NewServer(cfg.Core.Metrics)
	}

	var heartbeat *orchestrator.Heartbeat
	if cfg.Core.OptimizationConfig != nil {
		heartbeat = orchestrator.NewHeartbeat(time.Duration(cfg.Core.OptimizationConfig.HeartbeatGraceMs) * time.Millisecond)
	}

	ix := &Indexer{
		cfg:           cfg,
		db:            database,
		log:           log.WithComponent(common.ComponentOrchestrator),
		metricsServer: metricsServer,
		heartbeat:     heartbeat,
		stateTables:   stateTables,
	}

	pipeline, err := newPipeline(ix)
	if err != nil {
		return nil, err
	}

	electionPeriod := time.Duration(cfg.Core.NodeElectionRateMs) * time.Millisecond
	orchCfg := orchestrator.Config{
		ElectionPeriod:         electionPeriod,
		MaxConcurrentNodeCount: cfg.Core.MaxConcurrentNodeCount,
	}
	if cfg.Core.OptimizationConfig != nil {
		orchCfg.StartAfter = time.Duration(cfg.Core.OptimizationConfig.StartAfterInSecs) * time.Second
	}
	ix.orch = orchestrator.New(database, orchCfg, pipeline, heartbeat, log)

	return ix, nil
}

// maybeReset is the declarative, boot-time reset mechanism: it loads the latest
// root_state row, and whenever the configured reset counts exceed the
// stored ones, runs the corresponding reset and appends a new row recording
// the bump. A reset that was already applied on a prior boot (stored count
// already caught up) is a no-op here, so Setup can run this unconditionally
// on every boot.
func maybeReset(database *sql.DB, cfg config.Config, stateTables []string) error {
	ctx := context.Background()

	latest, err := rootstate.LoadLatest(ctx, database)
	if err != nil {
		return err
	}

	next := rootstate.RootState{
		ResetCount:                     latest.ResetCount,
		ResetIncludingSideEffectsCount: latest.ResetIncludingSideEffectsCount,
	}

	resetDue := cfg.ResetCount > latest.ResetCount
	sideEffectsResetDue := cfg.ResetIncludingSideEffectsCount > latest.ResetIncludingSideEffectsCount
	if !resetDue && !sideEffectsResetDue {
		return nil
	}

	if resetDue {
		if err := migrations.Reset(database, stateTables, cfg.ResetQueries); err != nil {
			return fmt.Errorf("chaindexor: reset_count bump failed: %w", err)
		}
		next.ResetCount = cfg.ResetCount
	}

	if sideEffectsResetDue {
		if err := migrations.Reset(database, stateTables, cfg.ResetQueries); err != nil {
			return fmt.Errorf("chaindexor: reset_including_side_effects_count bump failed: %w", err)
		}
		if err := migrations.ResetIncludingSideEffects(database); err != nil {
			return fmt.Errorf("chaindexor: reset_including_side_effects_count bump failed: %w", err)
		}
		next.ResetIncludingSideEffectsCount = cfg.ResetIncludingSideEffectsCount
	}

	return rootstate.Append(ctx, database, &next)
}

// Start runs the metrics server (if enabled) and the election/orchestrator
// loop until ctx is cancelled.
func (ix *Indexer) Start(ctx context.Context) error {
	if ix.metricsServer != nil {
		if err := ix.metricsServer.Start(ctx); err != nil {
			return err
		}
		defer ix.metricsServer.Stop(context.Background()) //nolint:errcheck
	}

	return ix.orch.Run(ctx)
}

// Heartbeat returns the optional idle-mode keep-alive signal, nil if
// optimization_config wasn't set. Hosting applications call Ping() on it
// from request-handling code to keep the leader's pipeline warm.
func (ix *Indexer) Heartbeat() *orchestrator.Heartbeat {
	return ix.heartbeat
}

// Reset truncates ingested state (events, reorged blocks, handler
// subscriptions, every user state table) and reruns the configured
// reset_queries. This is the same reset Setup applies automatically when
// reset_count is bumped in config (maybeReset); call it directly for an
// operator-triggered reset (e.g. a CLI subcommand) without touching
// root_state's stored count.
func (ix *Indexer) Reset(ctx context.Context) error {
	return migrations.Reset(ix.db, ix.stateTables, ix.cfg.Core.ResetQueries)
}

// ResetIncludingSideEffects nullifies every chain's side-effect cursor so
// side-effect handlers re-fire for already-persisted events. It runs only
// that step; when Setup applies a reset_including_side_effects_count bump
// (maybeReset) it runs the full Reset first and then this step.
func (ix *Indexer) ResetIncludingSideEffects(ctx context.Context) error {
	return migrations.ResetIncludingSideEffects(ix.db)
}

// DB exposes the underlying pool, for callers (CLI subcommands, tests) that
// need direct access.
func (ix *Indexer) DB() *sql.DB {
	return ix.db
}
