package reorgdetect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/events"
	"github.com/goran-ethernal/chaindexor/internal/filters"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/provider"
)

// DecodeFn turns a raw log plus its block's timestamp into an Event, the
// same construction ingestion uses.
type DecodeFn func(log types.Log, blockTimestamp uint64) (*events.Event, error)

// Detector re-scans a contract address's confirmation window and repairs
// any reorg it finds.
type Detector struct {
	db       *sql.DB
	provider provider.Provider
	log      *logger.Logger
}

// New builds a reorg detector.
func New(db *sql.DB, prov provider.Provider, log *logger.Logger) *Detector {
	return &Detector{db: db, provider: prov, log: log.WithComponent(common.ComponentReorgDetector)}
}

// Check re-scans target's confirmation window (if it is currently within
// one) and repairs any reorg found, in a single transaction.
func (d *Detector) Check(ctx context.Context, target filters.Target, topics [][]ethcommon.Hash, currentHead, blocksPerBatch uint64, minConfirmation filters.MinConfirmationCount, decode DecodeFn) error {
	filter, ok := filters.Plan(target, topics, currentHead, blocksPerBatch, filters.Confirmation(minConfirmation))
	if !ok {
		return nil
	}

	localEvents, err := events.LoadInRange(ctx, d.db, target.ChainID, target.Address, filter.FromBlock, filter.ToBlock)
	if err != nil {
		return fmt.Errorf("reorgdetect: failed to load local events: %w", err)
	}

	providerLogs, err := d.provider.Logs(ctx, filter)
	if err != nil {
		return fmt.Errorf("reorgdetect: failed to fetch provider logs: %w", err)
	}

	blocks, err := d.provider.BlocksByNumber(ctx, providerLogs)
	if err != nil {
		return fmt.Errorf("reorgdetect: failed to fetch blocks: %w", err)
	}

	var providerEvents []*events.Event
	for _, l := range providerLogs {
		if l.Removed {
			continue
		}
		header, ok := blocks[l.BlockNumber]
		if !ok {
			return fmt.Errorf("reorgdetect: missing block %d for log", l.BlockNumber)
		}
		e, err := decode(l, header.Time)
		if err != nil {
			d.log.Warnw("skipping undecodable log during reorg check", "error", err)
			continue
		}
		providerEvents = append(providerEvents, e)
	}

	added, removed := diff(localEvents, providerEvents)
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	reorgBlock := earliestBlock(added, removed)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reorgdetect: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := Insert(ctx, tx, target.ChainID, reorgBlock); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(removed))
	for _, e := range removed {
		ids = append(ids, e.ID)
	}
	if err := events.DeleteByIDs(ctx, tx, ids); err != nil {
		return fmt.Errorf("reorgdetect: failed to delete removed events: %w", err)
	}
	if err := events.Insert(ctx, tx, added); err != nil {
		return fmt.Errorf("reorgdetect: failed to insert added events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reorgdetect: failed to commit: %w", err)
	}

	metrics.ReorgDetectedInc(strconv.FormatUint(target.ChainID, 10), len(added), len(removed))
	d.log.Infow("reorg detected and repaired",
		"chain_id", target.ChainID, "block_number", reorgBlock,
		"added", len(added), "removed", len(removed))
	return nil
}

// diff computes added = provider \ local and removed = local \ provider
// under content-equality.
func diff(local, fromProvider []*events.Event) (added, removed []*events.Event) {
	localByKey := make(map[interface{}]*events.Event, len(local))
	for _, e := range local {
		localByKey[e.ContentKey()] = e
	}
	providerByKey := make(map[interface{}]*events.Event, len(fromProvider))
	for _, e := range fromProvider {
		providerByKey[e.ContentKey()] = e
	}

	for k, e := range providerByKey {
		if _, ok := localByKey[k]; !ok {
			added = append(added, e)
		}
	}
	for k, e := range localByKey {
		if _, ok := providerByKey[k]; !ok {
			removed = append(removed, e)
		}
	}
	return added, removed
}

func earliestBlock(added, removed []*events.Event) uint64 {
	var min uint64
	first := true
	for _, e := range append(append([]*events.Event{}, added...), removed...) {
		if first || e.BlockNumber < min {
			min = e.BlockNumber
			first = false
		}
	}
	return min
}
