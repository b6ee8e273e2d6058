package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// Insert persists a batch of events in one round trip per row. Events with
// Removed set are expected to already have been filtered out by the caller
//.
func Insert(ctx context.Context, q dbpkg.Querier, batch []*Event) error {
	for _, e := range batch {
		if err := meddler.Insert(q, "chaindexing_events", e); err != nil {
			return fmt.Errorf("events: failed to insert %s: %w", e.ID, err)
		}
	}
	return nil
}

// LoadInRange loads every event for a contract address within [from, to],
// ordered the way the handler dispatcher and reorg detector both need:
// ascending (block_number, log_index).
func LoadInRange(ctx context.Context, q dbpkg.Querier, chainID uint64, address common.Address, from, to uint64) ([]*Event, error) {
	var batch []*Event
	err := meddler.QueryAll(q, &batch,
		`SELECT * FROM chaindexing_events
		 WHERE chain_id = $1 AND contract_address = $2 AND block_number >= $3 AND block_number <= $4
		 ORDER BY block_number ASC, log_index ASC`,
		chainID, strings.ToLower(address.Hex()), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("events: failed to load range: %w", err)
	}
	return batch, nil
}

// LoadForChains loads events across a chunk of chains within [from, to),
// ordered (chain_id, block_number, log_index) ascending — the order the
// handler dispatcher consumes events in.
func LoadForChains(ctx context.Context, q dbpkg.Querier, chainIDs []uint64, from, to uint64) ([]*Event, error) {
	if len(chainIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]interface{}, 0, len(chainIDs)+2)
	clause := "("
	for i, id := range chainIDs {
		if i > 0 {
			clause += ", "
		}
		clause += fmt.Sprintf("$%d", i+1)
		placeholders = append(placeholders, id)
	}
	clause += ")"
	placeholders = append(placeholders, from, to)

	query := fmt.Sprintf(
		`SELECT * FROM chaindexing_events
		 WHERE chain_id IN %s AND block_number >= $%d AND block_number < $%d
		 ORDER BY chain_id ASC, block_number ASC, log_index ASC`,
		clause, len(chainIDs)+1, len(chainIDs)+2,
	)

	var batch []*Event
	if err := meddler.QueryAll(q, &batch, query, placeholders...); err != nil {
		return nil, fmt.Errorf("events: failed to load for chains: %w", err)
	}
	return batch, nil
}

// MostRecentForAddress returns the most recently ingested event for an
// address, used by the ingestion engine's idempotence check.
func MostRecentForAddress(ctx context.Context, q dbpkg.Querier, chainID uint64, address common.Address) (*Event, error) {
	var e Event
	err := meddler.QueryRow(q, &e,
		`SELECT * FROM chaindexing_events
		 WHERE chain_id = $1 AND contract_address = $2
		 ORDER BY block_number DESC, log_index DESC
		 LIMIT 1`,
		chainID, strings.ToLower(address.Hex()),
	)
	if err != nil {
		return nil, err // sql.ErrNoRows is meaningful to callers here
	}
	return &e, nil
}

// DeleteByIDs removes events by id, used when the reorg detector rewrites
// history.
func DeleteByIDs(ctx context.Context, q dbpkg.Querier, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := q.Exec(`DELETE FROM chaindexing_events WHERE id = $1`, id.String()); err != nil {
			return fmt.Errorf("events: failed to delete %s: %w", id, err)
		}
	}
	return nil
}
