// Package filters implements turning a contract address's ingestion
// cursor into a provider-ready block-range filter, in one of two execution
// modes.
package filters

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/goran-ethernal/chaindexor/internal/provider"
)

// ModeKind distinguishes the two execution modes a filter can be planned
// under.
type ModeKind int

const (
	// ModeMain plans the next forward-moving ingestion batch.
	ModeMain ModeKind = iota
	// ModeConfirmation plans a re-scan of the last N blocks behind the head,
	// used by the reorg detector.
	ModeConfirmation
)

// Mode selects Main or Confirmation(N) planning.
type Mode struct {
	Kind                 ModeKind
	MinConfirmationCount MinConfirmationCount
}

// Main is the ingestion engine's default planning mode.
func Main() Mode { return Mode{Kind: ModeMain} }

// Confirmation plans a re-scan window of N blocks.
func Confirmation(n MinConfirmationCount) Mode {
	return Mode{Kind: ModeConfirmation, MinConfirmationCount: n}
}

// MinConfirmationCount is the number of blocks behind the head a log is
// considered unconfirmed.
type MinConfirmationCount uint64

// DeductFrom returns max(start, block-N); it never underflows when
// N > block.
func (n MinConfirmationCount) DeductFrom(block, start uint64) uint64 {
	diff := int64(block) - int64(n)
	if diff < 0 {
		diff = 0
	}
	result := uint64(diff)
	if result < start {
		return start
	}
	return result
}

// IsInConfirmationWindow reports whether next is within the last N blocks
// behind current. Per the richer of the two source variants (see Design
// Notes), a confirmation count at or beyond the current head itself is
// treated as outside the window.
func (n MinConfirmationCount) IsInConfirmationWindow(next, current uint64) bool {
	value := uint64(n)
	if value >= current {
		return false
	}
	return next >= current-value
}

// Target is the subset of a ContractAddress the planner needs: its cursor,
// start block, and on-chain address/chain id.
type Target struct {
	ChainID          uint64
	Address          common.Address
	StartBlockNumber uint64
	NextToIngestFrom uint64
}

// Plan computes a block-range filter for target under mode, given the
// current head and batch size. ok is false when Confirmation mode doesn't
// apply yet, or when the computed range would be empty — the filter
// planner must never emit from > to.
func Plan(target Target, topics [][]common.Hash, currentHead, blocksPerBatch uint64, mode Mode) (provider.Filter, bool) {
	var from, to uint64

	switch mode.Kind {
	case ModeMain:
		from = target.NextToIngestFrom
		to = min64(from+blocksPerBatch, currentHead)
	case ModeConfirmation:
		n := mode.MinConfirmationCount
		if !n.IsInConfirmationWindow(target.NextToIngestFrom, currentHead) {
			return provider.Filter{}, false
		}
		from = n.DeductFrom(target.NextToIngestFrom, target.StartBlockNumber)
		to = target.NextToIngestFrom + blocksPerBatch
	}

	if from > to {
		return provider.Filter{}, false
	}

	return provider.Filter{
		Address:   target.Address,
		Topics:    topics,
		FromBlock: from,
		ToBlock:   to,
	}, true
}

// Latest picks, among filters for the same address, the one with the
// largest To.
func Latest(filters []provider.Filter) (provider.Filter, bool) {
	if len(filters) == 0 {
		return provider.Filter{}, false
	}
	latest := filters[0]
	for _, f := range filters[1:] {
		if f.ToBlock > latest.ToBlock {
			latest = f
		}
	}
	return latest, true
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
