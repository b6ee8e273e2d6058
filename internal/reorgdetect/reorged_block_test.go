package reorgdetect

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEarliestPerChain_PicksMinimumPerChain(t *testing.T) {
	rows := []*ReorgedBlock{
		{ID: 1, ChainID: 1, BlockNumber: 100},
		{ID: 2, ChainID: 1, BlockNumber: 50},
		{ID: 3, ChainID: 2, BlockNumber: 900},
		{ID: 4, ChainID: 2, BlockNumber: 950},
	}

	earliest := EarliestPerChain(rows)
	require.Len(t, earliest, 2)
	require.Equal(t, uint64(50), earliest[1].BlockNumber)
	require.Equal(t, uint64(900), earliest[2].BlockNumber)
}

func TestEarliestPerChain_Empty(t *testing.T) {
	require.Empty(t, EarliestPerChain(nil))
}

func TestMarkHandled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE chaindexing_reorged_blocks`).WithArgs(uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE chaindexing_reorged_blocks`).WithArgs(uint64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	err = MarkHandled(context.Background(), db, []uint64{1, 2})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
