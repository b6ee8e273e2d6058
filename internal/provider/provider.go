// Package provider implements an adapter over a JSON-RPC EVM node
// that exposes head number, log filtering, and block fetching, retrying
// every call indefinitely with exponential backoff so that callers can
// assume eventual success.
package provider

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Filter is a provider query over {address, topics, from_block, to_block}.
type Filter struct {
	Address   common.Address
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// Provider is the capability the rest of the pipeline depends on. It never
// returns transient errors to its callers — see Client for the retry
// behavior that makes that true.
type Provider interface {
	// CurrentBlockNumber returns the chain's current head.
	CurrentBlockNumber(ctx context.Context) (uint64, error)

	// Logs returns every log matching filter.
	Logs(ctx context.Context, filter Filter) ([]types.Log, error)

	// Block returns the block header at the given number.
	Block(ctx context.Context, number uint64) (*types.Header, error)

	// BlocksByNumber fetches, in fixed-size chunks, the distinct blocks
	// referenced by logs, deduplicated by block number.
	BlocksByNumber(ctx context.Context, logs []types.Log) (map[uint64]*types.Header, error)
}
