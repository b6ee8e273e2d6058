// Package events implements the persisted Event shape, its
// content-equality semantics, and deriving one from a raw log.
package events

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// Event is a persisted, decoded log augmented with block timestamp and
// indexing metadata.
type Event struct {
	ID               uuid.UUID              `meddler:"id,pk,uuid"`
	ChainID          uint64                 `meddler:"chain_id"`
	ContractAddress  common.Address         `meddler:"contract_address,address"`
	ContractName     string                 `meddler:"contract_name"`
	ABI              string                 `meddler:"abi"`
	Parameters       map[string]interface{} `meddler:"parameters,json"`
	Topics           []string               `meddler:"topics,json"`
	BlockHash        common.Hash            `meddler:"block_hash,hash"`
	BlockNumber      uint64                 `meddler:"block_number"`
	BlockTimestamp   uint64                 `meddler:"block_timestamp"`
	TransactionHash  common.Hash            `meddler:"transaction_hash,hash"`
	TransactionIndex uint                   `meddler:"transaction_index"`
	LogIndex         uint                   `meddler:"log_index"`
	Removed          bool                   `meddler:"removed"`
}

// contentKey is the comparable projection of an Event that equality and
// hashing are defined over: (chain_id, contract_address, abi, parameters,
// block_hash). Note id is deliberately excluded — two events with different
// ids but the same content are the same event.
type contentKey struct {
	chainID         uint64
	contractAddress string
	abi             string
	parameters      string
	blockHash       string
}

// ContentEqual reports whether e and other represent the same logical
// event, regardless of id.
func (e *Event) ContentEqual(other *Event) bool {
	return e.contentKey() == other.contentKey()
}

// ContentKey returns a comparable, hashable key built from the
// content-equality tuple, usable as a map key when diffing event sets
//.
func (e *Event) ContentKey() interface{} {
	return e.contentKey()
}

func (e *Event) contentKey() contentKey {
	return contentKey{
		chainID:         e.ChainID,
		contractAddress: strings.ToLower(e.ContractAddress.Hex()),
		abi:             e.ABI,
		parameters:      canonicalParams(e.Parameters),
		blockHash:       strings.ToLower(e.BlockHash.Hex()),
	}
}

// canonicalParams produces a deterministic string form of the parameters
// map so two structurally-equal maps compare equal regardless of Go map
// iteration order.
func canonicalParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	return b.String()
}

// Decode derives an Event from a raw log, the matching ABI event, the
// contract's name, chain id, and the containing block's timestamp. Logs
// marked removed are not filtered here — the caller drops them before
// persistence, so that a reorg-detector diff still sees them if
// it ever needs to (today it doesn't: Decode returning an event with
// Removed=true is the signal).
func Decode(log types.Log, contractABI abi.ABI, eventName, contractName string, chainID, blockTimestamp uint64) (*Event, error) {
	event, ok := contractABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("events: abi has no event named %q", eventName)
	}

	params := make(map[string]interface{})
	if len(log.Data) > 0 {
		if err := contractABI.UnpackIntoMap(params, eventName, log.Data); err != nil {
			return nil, fmt.Errorf("events: failed to unpack %q: %w", eventName, err)
		}
	}
	for i, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		topicIdx := i + 1 // topics[0] is the event signature
		if topicIdx < len(log.Topics) {
			params[input.Name] = log.Topics[topicIdx].Hex()
		}
	}

	topics := make([]string, len(log.Topics))
	for i, t := range log.Topics {
		topics[i] = strings.ToLower(t.Hex())
	}

	return &Event{
		ID:               uuid.New(),
		ChainID:          chainID,
		ContractAddress:  log.Address,
		ContractName:     contractName,
		ABI:              event.Sig,
		Parameters:       params,
		Topics:           topics,
		BlockHash:        log.BlockHash,
		BlockNumber:      log.BlockNumber,
		BlockTimestamp:   blockTimestamp,
		TransactionHash:  log.TxHash,
		TransactionIndex: log.TxIndex,
		LogIndex:         log.Index,
		Removed:          log.Removed,
	}, nil
}
