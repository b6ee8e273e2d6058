package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/goran-ethernal/chaindexor/internal/logger"
)

// blockFetchChunkSize is the fixed chunk size the provider uses for batched
// block-header fetches.
const blockFetchChunkSize = 4

// Client is the concrete, retrying Provider backed by a JSON-RPC endpoint.
type Client struct {
	eth *ethclient.Client
	rpc *rpc.Client
	log *logger.Logger
}

// NewClient dials the given JSON-RPC endpoint.
func NewClient(ctx context.Context, url string, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to dial %s: %w", url, err)
	}
	return &Client{
		eth: ethclient.NewClient(rpcClient),
		rpc: rpcClient,
		log: log.WithComponent("provider"),
	}, nil
}

func (c *Client) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := retryForever(ctx, c.log, "current_block_number", func() error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

func (c *Client) Logs(ctx context.Context, filter Filter) ([]types.Log, error) {
	var logs []types.Log
	err := retryForever(ctx, c.log, "logs", func() error {
		result, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
			Addresses: []common.Address{filter.Address},
			Topics:    filter.Topics,
			FromBlock: new(big.Int).SetUint64(filter.FromBlock),
			ToBlock:   new(big.Int).SetUint64(filter.ToBlock),
		})
		if err != nil {
			return err
		}
		logs = result
		return nil
	})
	return logs, err
}

func (c *Client) Block(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	err := retryForever(ctx, c.log, "block", func() error {
		h, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	return header, err
}

// BlocksByNumber dedups the block numbers referenced by logs and fetches
// them in fixed-size batches over a single JSON-RPC batch call per chunk.
func (c *Client) BlocksByNumber(ctx context.Context, logs []types.Log) (map[uint64]*types.Header, error) {
	numbers := dedupBlockNumbers(logs)
	result := make(map[uint64]*types.Header, len(numbers))

	for start := 0; start < len(numbers); start += blockFetchChunkSize {
		end := start + blockFetchChunkSize
		if end > len(numbers) {
			end = len(numbers)
		}
		chunk := numbers[start:end]

		batch := make([]rpc.BatchElem, len(chunk))
		headers := make([]*types.Header, len(chunk))
		for i, n := range chunk {
			headers[i] = new(types.Header)
			batch[i] = rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []interface{}{toBlockNumArg(n), false},
				Result: headers[i],
			}
		}

		err := retryForever(ctx, c.log, "blocks_by_number", func() error {
			for i := range batch {
				batch[i].Error = nil
			}
			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}
			for i, elem := range batch {
				if elem.Error != nil {
					return fmt.Errorf("provider: batch fetch of block %d failed: %w", chunk[i], elem.Error)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for i := range batch {
			result[chunk[i]] = headers[i]
		}
	}

	return result, nil
}

func dedupBlockNumbers(logs []types.Log) []uint64 {
	seen := make(map[uint64]bool, len(logs))
	var numbers []uint64
	for _, l := range logs {
		if !seen[l.BlockNumber] {
			seen[l.BlockNumber] = true
			numbers = append(numbers, l.BlockNumber)
		}
	}
	return numbers
}

func toBlockNumArg(number uint64) string {
	return fmt.Sprintf("0x%x", number)
}
