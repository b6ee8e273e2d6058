// Package rootstate implements the append-only history of
// reset_count/reset_including_side_effects_count bumps that Setup compares
// its configured counts against on every boot.
package rootstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// maxRows bounds the history the same way nodes.PruneOldest bounds the node
// registry — only the latest row is ever read, so the table is pruned
// rather than left to grow forever.
const maxRows = 100

// RootState is one row of reset-count history. The latest row (by id)
// determines whether a reset is due.
type RootState struct {
	ID                             uint64 `meddler:"id,pk"`
	ResetCount                     uint64 `meddler:"reset_count"`
	ResetIncludingSideEffectsCount uint64 `meddler:"reset_including_side_effects_count"`
}

// LoadLatest returns the most recently appended row, or a zero-valued
// RootState if none exists yet (first boot).
func LoadLatest(ctx context.Context, q dbpkg.Querier) (*RootState, error) {
	var rs RootState
	err := meddler.QueryRow(q, &rs,
		`SELECT * FROM chaindexing_root_state ORDER BY id DESC LIMIT 1`,
	)
	if err == nil {
		return &rs, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &RootState{}, nil
	}
	return nil, fmt.Errorf("rootstate: failed to load latest root state: %w", err)
}

// Append inserts a new row recording rs's counts, the current state of the
// world after a maybe-reset pass, and prunes rows beyond maxRows.
func Append(ctx context.Context, q dbpkg.Querier, rs *RootState) error {
	rs.ID = 0
	if err := meddler.Insert(q, "chaindexing_root_state", rs); err != nil {
		return fmt.Errorf("rootstate: failed to append root state: %w", err)
	}
	_, err := q.Exec(
		`DELETE FROM chaindexing_root_state
		 WHERE id NOT IN (
		     SELECT id FROM chaindexing_root_state ORDER BY id DESC LIMIT $1
		 )`,
		maxRows,
	)
	if err != nil {
		return fmt.Errorf("rootstate: failed to prune root state history: %w", err)
	}
	return nil
}
