package filters

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/goran-ethernal/chaindexor/internal/provider"
)

func TestMinConfirmationCount_DeductFrom(t *testing.T) {
	tests := []struct {
		name     string
		n        MinConfirmationCount
		block    uint64
		start    uint64
		expected uint64
	}{
		{name: "normal deduction", n: 10, block: 100, start: 0, expected: 90},
		{name: "clamped by start", n: 10, block: 100, start: 95, expected: 95},
		{name: "n greater than block never underflows", n: 1000, block: 5, start: 0, expected: 0},
		{name: "n greater than block clamped by start", n: 1000, block: 5, start: 3, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.n.DeductFrom(tt.block, tt.start))
		})
	}
}

func TestMinConfirmationCount_IsInConfirmationWindow(t *testing.T) {
	tests := []struct {
		name     string
		n        MinConfirmationCount
		next     uint64
		current  uint64
		expected bool
	}{
		{name: "within window", n: 10, next: 95, current: 100, expected: true},
		{name: "outside window", n: 10, next: 50, current: 100, expected: false},
		{name: "n at current head is outside", n: 100, next: 50, current: 100, expected: false},
		{name: "n beyond current head is outside", n: 200, next: 50, current: 100, expected: false},
		{name: "exactly at boundary is inside", n: 10, next: 90, current: 100, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.n.IsInConfirmationWindow(tt.next, tt.current))
		})
	}
}

func TestPlan_Main(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 0, NextToIngestFrom: 100}

	f, ok := Plan(target, nil, 150, 20, Main())
	require.True(t, ok)
	require.Equal(t, uint64(100), f.FromBlock)
	require.Equal(t, uint64(120), f.ToBlock)
}

func TestPlan_Main_CappedByHead(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 0, NextToIngestFrom: 100}

	f, ok := Plan(target, nil, 105, 50, Main())
	require.True(t, ok)
	require.Equal(t, uint64(100), f.FromBlock)
	require.Equal(t, uint64(105), f.ToBlock)
}

func TestPlan_Main_EmptyRangeRejected(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 0, NextToIngestFrom: 200}

	_, ok := Plan(target, nil, 100, 20, Main())
	require.False(t, ok)
}

func TestPlan_Confirmation_OutsideWindowRejected(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 0, NextToIngestFrom: 10}

	_, ok := Plan(target, nil, 1000, 20, Confirmation(5))
	require.False(t, ok)
}

func TestPlan_Confirmation_WithinWindow(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 0, NextToIngestFrom: 95}

	f, ok := Plan(target, nil, 100, 20, Confirmation(10))
	require.True(t, ok)
	require.Equal(t, uint64(85), f.FromBlock)
	require.Equal(t, uint64(115), f.ToBlock)
}

func TestPlan_Confirmation_ClampedByStartBlock(t *testing.T) {
	target := Target{ChainID: 1, Address: common.HexToAddress("0xabc"), StartBlockNumber: 92, NextToIngestFrom: 95}

	f, ok := Plan(target, nil, 100, 20, Confirmation(10))
	require.True(t, ok)
	require.Equal(t, uint64(92), f.FromBlock)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	require.False(t, ok)

	filters := []provider.Filter{
		{ToBlock: 100},
		{ToBlock: 300},
		{ToBlock: 200},
	}
	latest, ok := Latest(filters)
	require.True(t, ok)
	require.Equal(t, uint64(300), latest.ToBlock)
}
