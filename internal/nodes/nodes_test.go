package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestLeader_PicksMostRecentlyInserted(t *testing.T) {
	active := []*Node{
		{ID: 1, InsertedAt: 100},
		{ID: 2, InsertedAt: 300},
		{ID: 3, InsertedAt: 200},
	}
	leader := Leader(active)
	require.NotNil(t, leader)
	require.Equal(t, uint64(2), leader.ID)
}

func TestLeader_EmptyReturnsNil(t *testing.T) {
	require.Nil(t, Leader(nil))
}

func TestLeader_SingleNode(t *testing.T) {
	active := []*Node{{ID: 1, InsertedAt: 42}}
	leader := Leader(active)
	require.NotNil(t, leader)
	require.Equal(t, uint64(1), leader.ID)
}

func TestHeartbeat(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE chaindexing_nodes`).
		WithArgs(uint64(1), now.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = Heartbeat(context.Background(), db, 1, now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneOldest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM chaindexing_nodes`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = PruneOldest(context.Background(), db, 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
