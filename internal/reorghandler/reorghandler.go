// Package reorghandler consumes unhandled reorged blocks,
// backtracking every state table, and rewinding the pure-handler cursor.
package reorghandler

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/goran-ethernal/chaindexor/internal/common"
	"github.com/goran-ethernal/chaindexor/internal/handlers"
	"github.com/goran-ethernal/chaindexor/internal/logger"
	"github.com/goran-ethernal/chaindexor/internal/metrics"
	"github.com/goran-ethernal/chaindexor/internal/reorgdetect"
	"github.com/goran-ethernal/chaindexor/internal/states"
)

// Handler rewinds state and handler cursors whenever the reorg detector has
// recorded an unhandled reorg.
type Handler struct {
	db          *sql.DB
	stateTables []string
	log         *logger.Logger
}

// New builds a reorg handler over every configured state view table.
func New(db *sql.DB, stateTables []string, log *logger.Logger) *Handler {
	return &Handler{db: db, stateTables: stateTables, log: log.WithComponent(common.ComponentReorgHandler)}
}

// RunTick loads every unhandled reorged block, reduces them to the earliest
// block per chain, and for each chain backtracks every state table to that
// block and rewinds the pure-handler cursor to it. The side-effect cursor is
// never rewound: side effects fire at least once per reset generation, never
// retroactively undone by a reorg alone.
func (h *Handler) RunTick(ctx context.Context) error {
	unhandled, err := reorgdetect.LoadUnhandled(ctx, h.db)
	if err != nil {
		return fmt.Errorf("reorghandler: failed to load unhandled reorgs: %w", err)
	}
	if len(unhandled) == 0 {
		return nil
	}

	earliest := reorgdetect.EarliestPerChain(unhandled)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reorghandler: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for chainID, block := range earliest {
		for _, table := range h.stateTables {
			if err := states.BacktrackByBlock(ctx, tx, table, chainID, block.BlockNumber); err != nil {
				return fmt.Errorf("reorghandler: failed to backtrack %s on chain %d: %w", table, chainID, err)
			}
		}
		if err := handlers.Rewind(ctx, tx, chainID, block.BlockNumber); err != nil {
			return fmt.Errorf("reorghandler: failed to rewind handler cursor for chain %d: %w", chainID, err)
		}
		metrics.ReorgsHandledInc(strconv.FormatUint(chainID, 10))
	}

	ids := make([]uint64, 0, len(unhandled))
	for _, r := range unhandled {
		ids = append(ids, r.ID)
	}
	if err := reorgdetect.MarkHandled(ctx, tx, ids); err != nil {
		return fmt.Errorf("reorghandler: failed to mark reorgs handled: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reorghandler: failed to commit: %w", err)
	}

	h.log.Infow("reorg handled", "chains", len(earliest), "reorged_blocks", len(unhandled))
	return nil
}
