// Package reorgdetect implements a confirmation-window re-scan that
// diffs provider logs against already-ingested events and persists any
// reorg it finds.
package reorgdetect

import (
	"context"
	"fmt"

	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// ReorgedBlock records that chain c's block_number was reorged; the reorg
// handler consumes rows with HandledAt still nil.
type ReorgedBlock struct {
	ID          uint64  `meddler:"id,pk"`
	ChainID     uint64  `meddler:"chain_id"`
	BlockNumber uint64  `meddler:"block_number"`
	HandledAt   *string `meddler:"handled_at"`
}

// Insert persists a new reorged-block record.
func Insert(ctx context.Context, q dbpkg.Querier, chainID, blockNumber uint64) error {
	rb := &ReorgedBlock{ChainID: chainID, BlockNumber: blockNumber}
	if err := meddler.Insert(q, "chaindexing_reorged_blocks", rb); err != nil {
		return fmt.Errorf("reorgdetect: failed to insert reorged block: %w", err)
	}
	return nil
}

// LoadUnhandled returns every reorged block not yet handled, used by the
// reorg handler.
func LoadUnhandled(ctx context.Context, q dbpkg.Querier) ([]*ReorgedBlock, error) {
	var rows []*ReorgedBlock
	err := meddler.QueryAll(q, &rows,
		`SELECT * FROM chaindexing_reorged_blocks WHERE handled_at IS NULL ORDER BY chain_id, block_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("reorgdetect: failed to load unhandled reorged blocks: %w", err)
	}
	return rows, nil
}

// MarkHandled marks a set of reorged-block rows handled.
func MarkHandled(ctx context.Context, q dbpkg.Querier, ids []uint64) error {
	for _, id := range ids {
		if _, err := q.Exec(`UPDATE chaindexing_reorged_blocks SET handled_at = now() WHERE id = $1`, id); err != nil {
			return fmt.Errorf("reorgdetect: failed to mark %d handled: %w", id, err)
		}
	}
	return nil
}

// EarliestPerChain reduces a set of unhandled reorged blocks to the
// earliest block per chain — the reorg handler only needs to rewind to the
// earliest affected point.
func EarliestPerChain(rows []*ReorgedBlock) map[uint64]*ReorgedBlock {
	earliest := make(map[uint64]*ReorgedBlock)
	for _, r := range rows {
		cur, ok := earliest[r.ChainID]
		if !ok || r.BlockNumber < cur.BlockNumber {
			earliest[r.ChainID] = r
		}
	}
	return earliest
}
