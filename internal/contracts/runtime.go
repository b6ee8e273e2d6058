package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/goran-ethernal/chaindexor/internal/events"
)

// Runtime binds one configured contract's name and parsed ABI, letting the
// ingestion engine and reorg detector build filter topics and decode raw
// logs without re-parsing the ABI per call.
type Runtime struct {
	Name string
	ABI  abi.ABI
}

// Topics returns a single-position OR filter over every event signature the
// ABI declares — a log matching any of them is a candidate for this
// contract.
func (r Runtime) Topics() [][]common.Hash {
	ids := make([]common.Hash, 0, len(r.ABI.Events))
	for _, ev := range r.ABI.Events {
		ids = append(ids, ev.ID)
	}
	return [][]common.Hash{ids}
}

// Decode matches log against the ABI's events by topic0 and derives an
// Event from it.
func (r Runtime) Decode(log types.Log, chainID, blockTimestamp uint64) (*events.Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("contracts: log has no topics, cannot match an event")
	}
	for _, ev := range r.ABI.Events {
		if ev.ID == log.Topics[0] {
			return events.Decode(log, r.ABI, ev.Name, r.Name, chainID, blockTimestamp)
		}
	}
	return nil, fmt.Errorf("contracts: no event in %q's abi matches topic %s", r.Name, log.Topics[0].Hex())
}
