// Package contracts implements the contract-address stream and the
// upsert/cursor-advance operations ContractAddress rows support.
package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

// streamChunkSize is the fixed page size the address stream iterates in
//.
const streamChunkSize = 5

// ContractAddress is one indexed contract on one chain, with its own
// ingestion and handler cursors.
type ContractAddress struct {
	ID                          uint64         `meddler:"id,pk"`
	ChainID                     uint64         `meddler:"chain_id"`
	Address                     common.Address `meddler:"address,address"`
	ContractName                string         `meddler:"contract_name"`
	StartBlockNumber            uint64         `meddler:"start_block_number"`
	NextBlockNumberToIngestFrom uint64         `meddler:"next_block_number_to_ingest_from"`
	NextBlockNumberToHandleFrom uint64         `meddler:"next_block_number_to_handle_from"`
}

// Seed is a configured address to upsert at boot.
type Seed struct {
	ChainID          uint64
	Address          common.Address
	ContractName     string
	StartBlockNumber uint64
}

// UpsertSeeded inserts the configured addresses, or, on conflict with an
// existing (chain_id, address) pair, overwrites only contract_name — the
// three cursor fields are never reduced by an upsert.
func UpsertSeeded(ctx context.Context, q dbpkg.Querier, seeds []Seed) error {
	for _, seed := range seeds {
		addr := strings.ToLower(seed.Address.Hex())
		_, err := q.Exec(
			`INSERT INTO chaindexing_contract_addresses
				(address, contract_name, chain_id, start_block_number, next_block_number_to_ingest_from, next_block_number_to_handle_from)
			 VALUES ($1, $2, $3, $4, $4, $4)
			 ON CONFLICT (chain_id, address) DO UPDATE SET contract_name = excluded.contract_name`,
			addr, seed.ContractName, seed.ChainID, seed.StartBlockNumber,
		)
		if err != nil {
			return fmt.Errorf("contracts: failed to upsert seed %s: %w", addr, err)
		}
	}
	return nil
}

// IncludeContract is the runtime equivalent of UpsertSeeded, called from
// within a handler transaction. Per
// the open question on start_block_number semantics, the new address
// starts ingesting from the triggering event's own block_number, not
// block_number+1, consistent with upserts never decreasing cursors.
func IncludeContract(ctx context.Context, q dbpkg.Querier, chainID uint64, address common.Address, contractName string, blockNumber uint64) error {
	return UpsertSeeded(ctx, q, []Seed{{
		ChainID:          chainID,
		Address:          address,
		ContractName:     contractName,
		StartBlockNumber: blockNumber,
	}})
}

// FetchChunk returns up to streamChunkSize contract addresses for chainID
// with id > afterID, ordered ascending — one page of the address stream.
func FetchChunk(ctx context.Context, q dbpkg.Querier, chainID uint64, afterID uint64) ([]*ContractAddress, error) {
	var addresses []*ContractAddress
	err := meddler.QueryAll(q, &addresses,
		`SELECT * FROM chaindexing_contract_addresses
		 WHERE chain_id = $1 AND id > $2
		 ORDER BY id ASC
		 LIMIT $3`,
		chainID, afterID, streamChunkSize,
	)
	if err != nil {
		return nil, fmt.Errorf("contracts: failed to fetch chunk: %w", err)
	}
	return addresses, nil
}

// Stream calls fn with each successive chunk of chainID's contract
// addresses until a short page ends the stream or fn returns an error. It
// is a paginated cursor, not one tied to a single transaction: handlers that
// mutate addresses mid-iteration see a consistent snapshot only within a
// single chunk.
func Stream(ctx context.Context, q dbpkg.Querier, chainID uint64, fn func([]*ContractAddress) error) error {
	var afterID uint64
	for {
		chunk, err := FetchChunk(ctx, q, chainID, afterID)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			return nil
		}
		if err := fn(chunk); err != nil {
			return err
		}
		afterID = chunk[len(chunk)-1].ID
		if len(chunk) < streamChunkSize {
			return nil
		}
	}
}

// AdvanceIngestCursor monotonically advances next_block_number_to_ingest_from
// for one address; it never regresses the stored cursor.
func AdvanceIngestCursor(ctx context.Context, q dbpkg.Querier, id uint64, newNext uint64) error {
	_, err := q.Exec(
		`UPDATE chaindexing_contract_addresses
		 SET next_block_number_to_ingest_from = $2
		 WHERE id = $1 AND next_block_number_to_ingest_from < $2`,
		id, newNext,
	)
	if err != nil {
		return fmt.Errorf("contracts: failed to advance ingest cursor for %d: %w", id, err)
	}
	return nil
}

// ByChainAndAddress looks up a single contract address by chain id and
// (lowercased) address.
func ByChainAndAddress(ctx context.Context, q dbpkg.Querier, chainID uint64, address common.Address) (*ContractAddress, error) {
	var c ContractAddress
	err := meddler.QueryRow(q, &c,
		`SELECT * FROM chaindexing_contract_addresses WHERE chain_id = $1 AND address = $2`,
		chainID, strings.ToLower(address.Hex()),
	)
	if err != nil {
		return nil, fmt.Errorf("contracts: failed to load %s on chain %d: %w", address.Hex(), chainID, err)
	}
	return &c, nil
}
