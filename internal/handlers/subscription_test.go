package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
)

func TestEnsureSubscriptions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO chaindexing_handler_subscriptions`).
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO chaindexing_handler_subscriptions`).
		WithArgs(uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = EnsureSubscriptions(context.Background(), db, []uint64{1, 2})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE chaindexing_handler_subscriptions`).
		WithArgs(uint64(7), uint64(100), uint64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = Advance(context.Background(), db, 7, 100, 100)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE chaindexing_handler_subscriptions`).
		WithArgs(uint64(7), uint64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = Rewind(context.Background(), db, 7, 50)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeferredBuffer_DrainRunsAndClearsMutations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	buf := NewDeferredBuffer()

	var ran int
	buf.Enqueue(func(ctx context.Context, q dbpkg.Querier) error {
		ran++
		return nil
	})
	buf.Enqueue(func(ctx context.Context, q dbpkg.Querier) error {
		ran++
		return errors.New("boom")
	})

	errs := buf.Drain(context.Background(), db)
	require.Equal(t, 2, ran)
	require.Len(t, errs, 1)

	// A second drain finds nothing left to run.
	require.Empty(t, buf.Drain(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
