// Package pruning bounds storage growth by deleting
// ingested events and state versions older than a configurable horizon.
package pruning

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/migrations"
)

// Config tunes how far behind the head pruning keeps data, and how often it
// is allowed to run per chain.
type Config struct {
	PruneNBlocksAway uint64
	PruneInterval    time.Duration
}

// Pruner deletes events and state versions older than PruneNBlocksAway
// blocks behind the current head, at most once per PruneInterval per chain.
// It satisfies the ingestion engine's Pruner interface.
type Pruner struct {
	db          *sql.DB
	cfg         Config
	stateTables []string
	log         *logger.Logger

	mu      sync.Mutex
	lastRun map[uint64]time.Time
}

// New builds a pruner over every configured state view table.
func New(db *sql.DB, cfg Config, stateTables []string, log *logger.Logger) *Pruner {
	return &Pruner{
		db:          db,
		cfg:         cfg,
		stateTables: stateTables,
		log:         log.WithComponent(common.ComponentPruner),
		lastRun:     make(map[uint64]time.Time),
	}
}

// MaybeRun prunes chainID if PruneInterval has elapsed since its last run
// and PruneNBlocksAway is configured.
func (p *Pruner) MaybeRun(ctx context.Context, chainID, currentHead uint64) error {
	if p.cfg.PruneNBlocksAway == 0 {
		return nil
	}

	p.mu.Lock()
	last, ok := p.lastRun[chainID]
	due := !ok || time.Since(last) >= p.cfg.PruneInterval
	if due {
		p.lastRun[chainID] = time.Now()
	}
	p.mu.Unlock()
	if !due {
		return nil
	}

	minBlock := int64(currentHead) - int64(p.cfg.PruneNBlocksAway)
	if minBlock < 0 {
		minBlock = 0
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pruning: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM chaindexing_events WHERE chain_id = $1 AND block_number < $2`, chainID, minBlock)
	if err != nil {
		return fmt.Errorf("pruning: failed to delete old events for chain %d: %w", chainID, err)
	}
	deletedEvents, _ := res.RowsAffected()

	deletedVersions := int64(0)
	for _, table := range p.stateTables {
		versionsTable := migrations.VersionsTableName(table)
		res, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE chain_id = $1 AND block_number < $2`, versionsTable),
			chainID, minBlock,
		)
		if err != nil {
			return fmt.Errorf("pruning: failed to delete old versions in %s for chain %d: %w", versionsTable, chainID, err)
		}
		n, _ := res.RowsAffected()
		deletedVersions += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pruning: failed to commit: %w", err)
	}

	metrics.PrunedInc(strconv.FormatUint(chainID, 10), deletedEvents, deletedVersions)
	p.log.Infow("pruned old rows", "chain_id", chainID, "min_block", minBlock,
		"deleted_events", deletedEvents, "deleted_versions", deletedVersions)
	return nil
}
