package handlers

import (
	"context"
	"fmt"

	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// Subscription is one chain's handler progress: the pure-handler cursor and
// the (always-ahead-or-equal) side-effect cursor.
type Subscription struct {
	ChainID                      uint64 `meddler:"chain_id,pk"`
	NextBlockNumberToHandleFrom  uint64 `meddler:"next_block_number_to_handle_from"`
	NextBlockNumberForSideEffect uint64 `meddler:"next_block_number_for_side_effect"`
}

// EnsureSubscriptions makes sure every chain id in chainIDs has a
// subscription row, creating one starting at block 0 if absent.
func EnsureSubscriptions(ctx context.Context, q dbpkg.Querier, chainIDs []uint64) error {
	for _, id := range chainIDs {
		_, err := q.Exec(
			`INSERT INTO chaindexing_handler_subscriptions (chain_id, next_block_number_to_handle_from, next_block_number_for_side_effect)
			 VALUES ($1, 0, 0)
			 ON CONFLICT (chain_id) DO NOTHING`,
			id,
		)
		if err != nil {
			return fmt.Errorf("handlers: failed to ensure subscription for chain %d: %w", id, err)
		}
	}
	return nil
}

// LoadSubscriptions returns the subscription rows for the given chains.
func LoadSubscriptions(ctx context.Context, q dbpkg.Querier, chainIDs []uint64) ([]*Subscription, error) {
	if err := EnsureSubscriptions(ctx, q, chainIDs); err != nil {
		return nil, err
	}

	placeholders := make([]string, len(chainIDs))
	args := make([]interface{}, len(chainIDs))
	for i, id := range chainIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	var subs []*Subscription
	query := fmt.Sprintf(`SELECT * FROM chaindexing_handler_subscriptions WHERE chain_id IN (%s)`, join(placeholders, ", "))
	if err := meddler.QueryAll(q, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("handlers: failed to load subscriptions: %w", err)
	}
	return subs, nil
}

// Advance bumps a chain's cursors to at least the given block numbers,
// never decreasing them — the side-effect cursor is always >= the
// pure-handler cursor.
func Advance(ctx context.Context, q dbpkg.Querier, chainID, nextToHandleFrom, nextForSideEffect uint64) error {
	_, err := q.Exec(
		`UPDATE chaindexing_handler_subscriptions
		 SET next_block_number_to_handle_from = GREATEST(next_block_number_to_handle_from, $2),
		     next_block_number_for_side_effect = GREATEST(next_block_number_for_side_effect, $3)
		 WHERE chain_id = $1`,
		chainID, nextToHandleFrom, nextForSideEffect,
	)
	if err != nil {
		return fmt.Errorf("handlers: failed to advance subscription for chain %d: %w", chainID, err)
	}
	return nil
}

// Rewind moves a chain's pure-handler cursor backward to block, if it is
// currently ahead of it — used by the reorg handler to replay events a
// reorg invalidated. The side-effect cursor is left untouched.
func Rewind(ctx context.Context, q dbpkg.Querier, chainID, block uint64) error {
	_, err := q.Exec(
		`UPDATE chaindexing_handler_subscriptions
		 SET next_block_number_to_handle_from = LEAST(next_block_number_to_handle_from, $2)
		 WHERE chain_id = $1`,
		chainID, block,
	)
	if err != nil {
		return fmt.Errorf("handlers: failed to rewind subscription for chain %d: %w", chainID, err)
	}
	return nil
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
