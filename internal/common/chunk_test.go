package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		items    []int
		size     int
		expected [][]int
	}{
		{name: "even split", items: []int{1, 2, 3, 4}, size: 2, expected: [][]int{{1, 2}, {3, 4}}},
		{name: "uneven split", items: []int{1, 2, 3, 4, 5}, size: 2, expected: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "size larger than input", items: []int{1, 2}, size: 10, expected: [][]int{{1, 2}}},
		{name: "empty input", items: nil, size: 2, expected: nil},
		{name: "zero size defaults to one chunk", items: []int{1, 2, 3}, size: 0, expected: [][]int{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Chunk(tt.items, tt.size))
		})
	}
}

func TestPartition(t *testing.T) {
	out := Partition([]int{1, 2, 3, 4, 5}, 2)
	require.Len(t, out, 2)

	var total int
	seen := make(map[int]bool)
	for _, part := range out {
		total += len(part)
		for _, v := range part {
			seen[v] = true
		}
	}
	require.Equal(t, 5, total)
	for i := 1; i <= 5; i++ {
		require.True(t, seen[i])
	}
}

func TestPartition_FewerItemsThanN(t *testing.T) {
	out := Partition([]int{1, 2}, 10)
	require.Len(t, out, 2)
}

func TestPartition_Empty(t *testing.T) {
	require.Nil(t, Partition[int](nil, 4))
}

func TestPartition_ZeroN(t *testing.T) {
	out := Partition([]int{1, 2, 3}, 0)
	require.Len(t, out, 1)
	require.ElementsMatch(t, []int{1, 2, 3}, out[0])
}
