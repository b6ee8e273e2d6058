package states

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/goran-ethernal/chaindexor/internal/events"
)

const balancesTable = "erc20_token_balances"
const balancesVersionsTable = "chaindexing_state_versions_for_erc20_token_balances"

func testEvent() *events.Event {
	return &events.Event{
		ChainID:          1,
		ContractAddress:  common.HexToAddress("0xABCDEF0000000000000000000000000000000001"),
		TransactionHash:  common.HexToHash("0x01"),
		TransactionIndex: 2,
		LogIndex:         3,
		BlockNumber:      100,
		BlockHash:        common.HexToHash("0x02"),
	}
}

func TestReadMany_ScopeContract(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM erc20_token_balances WHERE "holder_address" = \$\d+ AND chain_id = \$\d+ AND contract_address = \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"holder_address", "balance"}).AddRow("0xabc", "100"))

	rows, err := ReadMany(context.Background(), db, balancesTable, Row{"holder_address": "0xabc"}, ScopeContract, testEvent())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "100", rows[0]["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadMany_ScopeChain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM erc20_token_balances WHERE chain_id = \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"holder_address"}))

	rows, err := ReadMany(context.Background(), db, balancesTable, nil, ScopeChain, testEvent())
	require.NoError(t, err)
	require.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadMany_ScopeMultiChainNoFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`^SELECT \* FROM erc20_token_balances$`).
		WillReturnRows(sqlmock.NewRows([]string{"holder_address"}))

	rows, err := ReadMany(context.Background(), db, balancesTable, nil, ScopeMultiChain, testEvent())
	require.NoError(t, err)
	require.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO chaindexing_state_versions_for_erc20_token_balances`).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "holder_address", "balance"}).
			AddRow(uuid.New().String(), "0xabc", "100"))

	row, err := CreateVersion(context.Background(), db, balancesTable, Row{"holder_address": "0xabc", "balance": "100"}, testEvent())
	require.NoError(t, err)
	require.Equal(t, "100", row["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestVersion_NoneFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1 ORDER BY block_number DESC, log_index DESC LIMIT 1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id"}))

	row, err := LatestVersion(context.Background(), db, balancesTable, groupID)
	require.NoError(t, err)
	require.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestVersion_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "balance"}).AddRow(groupID.String(), "50"))

	row, err := LatestVersion(context.Background(), db, balancesTable, groupID)
	require.NoError(t, err)
	require.Equal(t, "50", row["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "holder_address", "balance", "state_version_is_deleted"}).
			AddRow(groupID.String(), "0xabc", "50", false))
	mock.ExpectQuery(`INSERT INTO chaindexing_state_versions_for_erc20_token_balances`).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "balance"}).AddRow(groupID.String(), "150"))

	row, err := UpdateVersion(context.Background(), db, balancesTable, groupID, Row{"balance": "150"}, testEvent())
	require.NoError(t, err)
	require.Equal(t, "150", row["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVersion_NoExistingGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id"}))

	_, err = UpdateVersion(context.Background(), db, balancesTable, groupID, Row{"balance": "150"}, testEvent())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshView_DeletesThenInsertsLatestSurviving(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectExec(`DELETE FROM erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "holder_address", "balance", "state_version_is_deleted"}).
			AddRow(groupID.String(), "0xabc", "50", false))
	mock.ExpectExec(`INSERT INTO erc20_token_balances`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = RefreshView(context.Background(), db, balancesTable, groupID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshView_DeletesOnlyWhenLatestIsTombstone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectExec(`DELETE FROM erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id", "state_version_is_deleted"}).
			AddRow(groupID.String(), true))

	err = RefreshView(context.Background(), db, balancesTable, groupID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshView_DeletesOnlyWhenGroupFullyGone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectExec(`DELETE FROM erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id"}))

	err = RefreshView(context.Background(), db, balancesTable, groupID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBacktrackByBlock_NoAffectedVersionsIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT state_version_id, state_version_group_id FROM chaindexing_state_versions_for_erc20_token_balances WHERE chain_id = \$1 AND block_number >= \$2`).
		WithArgs(uint64(1), uint64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_id", "state_version_group_id"}))

	err = BacktrackByBlock(context.Background(), db, balancesTable, 1, 100)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBacktrackByBlock_DeletesAndRefreshesAffectedGroups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	groupID := uuid.New()
	mock.ExpectQuery(`SELECT state_version_id, state_version_group_id FROM chaindexing_state_versions_for_erc20_token_balances WHERE chain_id = \$1 AND block_number >= \$2`).
		WithArgs(uint64(1), uint64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_id", "state_version_group_id"}).AddRow(int64(9), groupID.String()))
	mock.ExpectExec(`DELETE FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_id IN`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM chaindexing_state_versions_for_erc20_token_balances WHERE state_version_group_id = \$1`).
		WithArgs(groupID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"state_version_group_id"}))

	err = BacktrackByBlock(context.Background(), db, balancesTable, 1, 100)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
