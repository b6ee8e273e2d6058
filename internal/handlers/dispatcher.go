package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/events"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
)

// Dispatcher drives one chain-chunk's handler pass, per tick.
type Dispatcher struct {
	db          *sql.DB
	registry    *Registry
	sharedState interface{}
	deferred    *DeferredBuffer
	log         *logger.Logger
}

// NewDispatcher builds a dispatcher for one chain-chunk. deferred is shared
// across every chunk's dispatcher in the process, since it is drained by a
// single task per tick at the orchestrator level.
func NewDispatcher(db *sql.DB, registry *Registry, sharedState interface{}, deferred *DeferredBuffer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		registry:    registry,
		sharedState: sharedState,
		deferred:    deferred,
		log:         log.WithComponent(common.ComponentHandlerDispatch),
	}
}

// RunTick executes one handler pass over chainIDs: load subscriptions, load
// the next batch of in-order events, run pure (and eligible side-effect)
// handlers inside one transaction, advance cursors, commit, then drain the
// deferred multi-chain buffer.
func (d *Dispatcher) RunTick(ctx context.Context, chainIDs []uint64, blocksPerBatch uint64) error {
	tickStart := time.Now()
	subs, err := LoadSubscriptions(ctx, d.db, chainIDs)
	if err != nil {
		return fmt.Errorf("handlers: failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	subByChain := make(map[uint64]*Subscription, len(subs))
	from := subs[0].NextBlockNumberToHandleFrom
	for _, s := range subs {
		subByChain[s.ChainID] = s
		if s.NextBlockNumberToHandleFrom < from {
			from = s.NextBlockNumberToHandleFrom
		}
	}
	to := from + blocksPerBatch

	batch, err := events.LoadForChains(ctx, d.db, chainIDs, from, to)
	if err != nil {
		return fmt.Errorf("handlers: failed to load events: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	byChain := make(map[uint64][]*events.Event)
	for _, e := range batch {
		byChain[e.ChainID] = append(byChain[e.ChainID], e)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("handlers: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for chainID, chainEvents := range byChain {
		sub := subByChain[chainID]
		if sub == nil {
			continue
		}
		if err := d.handleChainSlice(ctx, tx, sub, chainEvents); err != nil {
			return fmt.Errorf("handlers: chain %d: %w", chainID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("handlers: failed to commit batch: %w", err)
	}

	for chainID, chainEvents := range byChain {
		chainIDStr := strconv.FormatUint(chainID, 10)
		metrics.HandledEventsInc(chainIDStr, len(chainEvents))
		if sub := subByChain[chainID]; sub != nil {
			metrics.HandledUpToBlockSet(chainIDStr, sub.NextBlockNumberToHandleFrom)
		}
	}
	metrics.HandlerTickDurationObserve("all", time.Since(tickStart))

	for _, err := range d.deferred.Drain(ctx, d.db) {
		metrics.DeferredMutationErrorsInc()
		d.log.Errorw("deferred multi-chain mutation failed", "error", err)
	}

	return nil
}

// handleChainSlice runs the pure (and eligible side-effect) pass for one
// chain's slice of the batch and advances its cursors.
func (d *Dispatcher) handleChainSlice(ctx context.Context, tx *sql.Tx, sub *Subscription, chainEvents []*events.Event) error {
	lastBlock := sub.NextBlockNumberToHandleFrom
	sideEffectLastBlock := sub.NextBlockNumberForSideEffect

	for _, e := range chainEvents {
		if e.BlockNumber < sub.NextBlockNumberToHandleFrom {
			continue
		}

		if pure, ok := d.registry.Pure(e.ABI); ok {
			hctx := &PureHandlerContext{Tx: tx, Event: e, Deferred: d.deferred}
			if err := pure.Handle(ctx, hctx); err != nil {
				return fmt.Errorf("pure handler for %q failed on event %s: %w", e.ABI, e.ID, err)
			}
		}

		if e.BlockNumber >= sub.NextBlockNumberForSideEffect {
			if sideEffect, ok := d.registry.SideEffect(e.ABI); ok {
				hctx := &SideEffectHandlerContext{Tx: tx, Event: e, SharedState: d.sharedState}
				if err := sideEffect.Handle(ctx, hctx); err != nil {
					return fmt.Errorf("side-effect handler for %q failed on event %s: %w", e.ABI, e.ID, err)
				}
			}
			if e.BlockNumber+1 > sideEffectLastBlock {
				sideEffectLastBlock = e.BlockNumber + 1
			}
		}

		if e.BlockNumber+1 > lastBlock {
			lastBlock = e.BlockNumber + 1
		}
	}

	return Advance(ctx, tx, sub.ChainID, lastBlock, sideEffectLastBlock)
}
