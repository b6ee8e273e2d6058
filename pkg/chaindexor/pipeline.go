package chaindexor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/contracts"
	"github.com/goran-ethernal/chaindexor/internal/filters"
	"github.com/goran-ethernal/chaindexor/internal/handlers"
	"github.com/goran-ethernal/chaindexor/internal/ingester"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/provider"
	"github.com/goran-ethernal/chaindexor/internal/pruning"
	"github.com/goran-ethernal/chaindexor/internal/reorgdetect"
	"github.com/goran-ethernal/chaindexor/internal/reorghandler"
)

// chainRuntime is everything one chain's ingestion tick needs: the dialed
// provider and the engine built over it.
type chainRuntime struct {
	chainID  uint64
	engine   *ingester.Engine
	chainCfg ingester.ChainConfig
}

// pipeline is the orchestrator.Pipeline a leader spawns and tears down on
// every Active transition. It runs one goroutine per chain-chunk for
// ingestion (which drives the reorg detector and pruner inline
// steps 6-7), one per chain-chunk for handler dispatch, and one for the
// reorg handler — independent tasks looping on their own tickers.
type pipeline struct {
	chainChunks    [][]chainRuntime
	dispatchChunks [][]uint64
	dispatchers    []*handlers.Dispatcher
	reorgHandler   *reorghandler.Handler

	ingestionRate  time.Duration
	handlerRate    time.Duration
	blocksPerBatch uint64

	wg  sync.WaitGroup
	log *logger.Logger
}

// newPipeline dials every configured chain's provider, builds one ingestion
// engine per chain and one handler dispatcher per chain-chunk, and returns
// a Pipeline ready for the orchestrator to Start/Stop as leadership changes.
func newPipeline(ix *Indexer) (*pipeline, error) {
	cfg := ix.cfg.Core

	registry := handlers.NewRegistry()
	runtimesByName := make(map[string]contracts.Runtime, len(ix.cfg.Contracts))
	for _, c := range ix.cfg.Contracts {
		runtimesByName[c.Name] = c.runtime()
		for _, h := range c.PureHandlers {
			registry.RegisterPure(h)
		}
		for _, h := range c.SideEffectHandlers {
			registry.RegisterSideEffect(h)
		}
	}

	prunerCfg := pruning.Config{}
	if cfg.PruningConfig != nil {
		prunerCfg.PruneNBlocksAway = cfg.PruningConfig.PruneNBlocksAway
		prunerCfg.PruneInterval = time.Duration(cfg.PruningConfig.PruneIntervalMs) * time.Millisecond
	}
	sharedPruner := pruning.New(ix.db, prunerCfg, ix.stateTables, ix.log)

	var chainRTs []chainRuntime
	var chainIDs []uint64
	for _, ch := range cfg.Chains {
		prov, err := provider.NewClient(context.Background(), ch.JSONRPCURL, ix.log)
		if err != nil {
			return nil, fmt.Errorf("chaindexor: failed to connect to chain %d: %w", ch.ID, err)
		}
		detector := reorgdetect.New(ix.db, prov, ix.log)
		engine := ingester.New(ix.db, prov, detector, sharedPruner, ix.log)

		chainRTs = append(chainRTs, chainRuntime{
			chainID: ch.ID,
			engine:  engine,
			chainCfg: ingester.ChainConfig{
				ChainID:              ch.ID,
				BlocksPerBatch:       cfg.BlocksPerBatch,
				MinConfirmationCount: filters.MinConfirmationCount(cfg.MinConfirmationCount),
				Contracts:            runtimesByName,
			},
		})
		chainIDs = append(chainIDs, ch.ID)
	}

	chainChunks := common.Partition(chainRTs, cfg.ChainConcurrency)
	dispatchChunks := common.Partition(chainIDs, cfg.ChainConcurrency)

	deferred := handlers.NewDeferredBuffer()
	dispatchers := make([]*handlers.Dispatcher, len(dispatchChunks))
	for i := range dispatchChunks {
		dispatchers[i] = handlers.NewDispatcher(ix.db, registry, ix.cfg.SharedState, deferred, ix.log)
	}

	return &pipeline{
		chainChunks:    chainChunks,
		dispatchChunks: dispatchChunks,
		dispatchers:    dispatchers,
		reorgHandler:   reorghandler.New(ix.db, ix.stateTables, ix.log),
		ingestionRate:  time.Duration(cfg.IngestionRateMs) * time.Millisecond,
		handlerRate:    time.Duration(cfg.HandlerRateMs) * time.Millisecond,
		blocksPerBatch: cfg.BlocksPerBatch,
		log:            ix.log.WithComponent(common.ComponentOrchestrator),
	}, nil
}

// Start spawns every chain-chunk's ingestion and handler-dispatch loop plus
// the reorg handler loop, all ticking independently until ctx is cancelled.
func (p *pipeline) Start(ctx context.Context) {
	for _, chunk := range p.chainChunks {
		chunk := chunk
		p.wg.Add(1)
		go p.runIngestionChunk(ctx, chunk)
	}

	for i, ids := range p.dispatchChunks {
		ids := ids
		dispatcher := p.dispatchers[i]
		p.wg.Add(1)
		go p.runHandlerChunk(ctx, dispatcher, ids)
	}

	p.wg.Add(1)
	go p.runReorgHandler(ctx)
}

// Stop waits for every spawned task to observe ctx cancellation and return.
// The orchestrator cancels the pipeline's context before calling Stop, so
// this is just the join.
func (p *pipeline) Stop() {
	p.wg.Wait()
}

func (p *pipeline) runIngestionChunk(ctx context.Context, chunk []chainRuntime) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.ingestionRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, c := range chunk {
			if err := c.engine.RunTick(ctx, c.chainCfg); err != nil {
				p.log.Errorw("ingestion tick failed", "chain_id", c.chainID, "error", err)
			}
		}
	}
}

func (p *pipeline) runHandlerChunk(ctx context.Context, dispatcher *handlers.Dispatcher, chainIDs []uint64) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.handlerRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := dispatcher.RunTick(ctx, chainIDs, p.blocksPerBatch); err != nil {
			p.log.Errorw("handler tick failed", "chain_ids", chainIDs, "error", err)
		}
	}
}

// runReorgHandler ticks at 2x the handler rate.
func (p *pipeline) runReorgHandler(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(2 * p.handlerRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := p.reorgHandler.RunTick(ctx); err != nil {
			p.log.Errorw("reorg handler tick failed", "error", err)
		}
	}
}
