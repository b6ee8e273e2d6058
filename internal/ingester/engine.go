// Package ingester implements the per-chain ingestion main loop.
package ingester

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/contracts"
	"github.com/goran-ethernal/chaindexor/internal/events"
	"github.com/goran-ethernal/chaindexor/internal/filters"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/provider"
	"github.com/goran-ethernal/chaindexor/internal/reorgdetect"
)

// Pruner is consulted at the end of every tick; the pruning
// loop decides for itself whether enough time has passed to act.
type Pruner interface {
	MaybeRun(ctx context.Context, chainID, currentHead uint64) error
}

// ChainConfig is everything one chain's ingestion tick needs: its id, the
// batch size, the confirmation count the reorg detector re-scans with, and
// the runtime (ABI + name) for every contract configured on this chain.
type ChainConfig struct {
	ChainID              uint64
	BlocksPerBatch       uint64
	MinConfirmationCount filters.MinConfirmationCount
	Contracts            map[string]contracts.Runtime // keyed by contract_name
}

// Engine runs one chain's ingestion tick.
type Engine struct {
	db       *sql.DB
	provider provider.Provider
	detector *reorgdetect.Detector
	pruner   Pruner
	log      *logger.Logger
}

// New builds an ingestion engine.
func New(db *sql.DB, prov provider.Provider, detector *reorgdetect.Detector, pruner Pruner, log *logger.Logger) *Engine {
	return &Engine{
		db:       db,
		provider: prov,
		detector: detector,
		pruner:   pruner,
		log:      log.WithComponent(common.ComponentIngester),
	}
}

type plannedFetch struct {
	address *contracts.ContractAddress
	runtime contracts.Runtime
	filter  provider.Filter
}

// RunTick executes one ingestion pass over cfg.ChainID.
func (e *Engine) RunTick(ctx context.Context, cfg ChainConfig) error {
	start := time.Now()
	chainIDStr := strconv.FormatUint(cfg.ChainID, 10)
	defer func() { metrics.IngestionTickDurationObserve(chainIDStr, time.Since(start)) }()

	head, err := e.provider.CurrentBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("ingester: failed to fetch current head: %w", err)
	}

	return contracts.Stream(ctx, e.db, cfg.ChainID, func(chunk []*contracts.ContractAddress) error {
		return e.processChunk(ctx, cfg, head, chunk)
	})
}

func (e *Engine) processChunk(ctx context.Context, cfg ChainConfig, head uint64, chunk []*contracts.ContractAddress) error {
	var planned []plannedFetch

	for _, addr := range chunk {
		if addr.NextBlockNumberToIngestFrom > head {
			continue
		}
		runtime, ok := cfg.Contracts[addr.ContractName]
		if !ok {
			continue
		}

		target := filters.Target{
			ChainID:          cfg.ChainID,
			Address:          addr.Address,
			StartBlockNumber: addr.StartBlockNumber,
			NextToIngestFrom: addr.NextBlockNumberToIngestFrom,
		}
		filter, ok := filters.Plan(target, runtime.Topics(), head, cfg.BlocksPerBatch, filters.Main())
		if !ok {
			continue
		}

		if filter.FromBlock == filter.ToBlock {
			recent, err := events.MostRecentForAddress(ctx, e.db, cfg.ChainID, addr.Address)
			if err == nil && recent != nil && recent.BlockNumber == filter.ToBlock {
				// Idempotence: this tip-adjacent batch was already ingested.
				continue
			}
		}

		planned = append(planned, plannedFetch{address: addr, runtime: runtime, filter: filter})
	}

	if len(planned) == 0 {
		return e.maybeInvokeReorgDetector(ctx, cfg, head, chunk)
	}

	logsByAddressID, err := e.fetchLogs(ctx, planned)
	if err != nil {
		return err
	}

	type decorated struct {
		planned plannedFetch
		log     types.Log
	}
	var allLogs []decorated
	var rawLogs []types.Log
	for _, p := range planned {
		for _, l := range logsByAddressID[p.address.ID] {
			allLogs = append(allLogs, decorated{planned: p, log: l})
			rawLogs = append(rawLogs, l)
		}
	}

	blocks, err := e.provider.BlocksByNumber(ctx, rawLogs)
	if err != nil {
		return fmt.Errorf("ingester: failed to fetch blocks: %w", err)
	}

	var batch []*events.Event
	for _, d := range allLogs {
		if d.log.Removed {
			continue
		}
		header, ok := blocks[d.log.BlockNumber]
		if !ok {
			return fmt.Errorf("ingester: missing block %d", d.log.BlockNumber)
		}
		event, err := d.planned.runtime.Decode(d.log, cfg.ChainID, header.Time)
		if err != nil {
			e.log.Warnw("skipping undecodable log", "error", err, "contract", d.planned.runtime.Name)
			continue
		}
		if event.Removed {
			continue
		}
		batch = append(batch, event)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ingester: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := events.Insert(ctx, tx, batch); err != nil {
		return fmt.Errorf("ingester: failed to insert events: %w", err)
	}
	for _, p := range planned {
		if err := contracts.AdvanceIngestCursor(ctx, tx, p.address.ID, p.filter.ToBlock+1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ingester: failed to commit ingestion batch: %w", err)
	}

	chainIDStr := strconv.FormatUint(cfg.ChainID, 10)
	metrics.IngestedEventsInc(chainIDStr, len(batch))
	for _, p := range planned {
		metrics.IngestedUpToBlockSet(chainIDStr, p.filter.ToBlock)
	}

	return e.maybeInvokeReorgDetector(ctx, cfg, head, chunk)
}

// fetchLogs fetches every planned filter's logs in parallel.
func (e *Engine) fetchLogs(ctx context.Context, planned []plannedFetch) (map[uint64][]types.Log, error) {
	results := make([][]types.Log, len(planned))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range planned {
		i, p := i, p
		g.Go(func() error {
			logs, err := e.provider.Logs(gctx, p.filter)
			if err != nil {
				return fmt.Errorf("ingester: failed to fetch logs for %s: %w", p.address.Address.Hex(), err)
			}
			results[i] = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byAddress := make(map[uint64][]types.Log, len(planned))
	for i, p := range planned {
		byAddress[p.address.ID] = results[i]
	}
	return byAddress, nil
}

// maybeInvokeReorgDetector runs the reorg detector's confirmation-window
// check for every address in the chunk.
func (e *Engine) maybeInvokeReorgDetector(ctx context.Context, cfg ChainConfig, head uint64, chunk []*contracts.ContractAddress) error {
	for _, addr := range chunk {
		runtime, ok := cfg.Contracts[addr.ContractName]
		if !ok {
			continue
		}
		target := filters.Target{
			ChainID:          cfg.ChainID,
			Address:          addr.Address,
			StartBlockNumber: addr.StartBlockNumber,
			NextToIngestFrom: addr.NextBlockNumberToIngestFrom,
		}
		decode := func(l types.Log, ts uint64) (*events.Event, error) {
			return runtime.Decode(l, cfg.ChainID, ts)
		}
		if err := e.detector.Check(ctx, target, runtime.Topics(), head, cfg.BlocksPerBatch, cfg.MinConfirmationCount, decode); err != nil {
			return fmt.Errorf("ingester: reorg check failed for %s: %w", addr.Address.Hex(), err)
		}
	}

	if e.pruner != nil {
		if err := e.pruner.MaybeRun(ctx, cfg.ChainID, head); err != nil {
			return fmt.Errorf("ingester: pruning failed: %w", err)
		}
	}
	return nil
}
