package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateMigration_Build_DoesNotDeclareGroupIDTwice(t *testing.T) {
	m := StateMigration{
		TableName: "erc20_token_balances",
		CreateViewSQL: `CREATE TABLE IF NOT EXISTS erc20_token_balances (
			state_version_group_id uuid NOT NULL,
			holder_address varchar NOT NULL,
			balance varchar NOT NULL DEFAULT '0'
		)`,
		UserColumns: []string{"holder_address"},
	}

	mig := m.Build()
	require.Len(t, mig.Up, 1)

	up := mig.Up[0]
	require.Equal(t, 1, strings.Count(up, "state_version_group_id uuid NOT NULL"),
		"state_version_group_id must be declared exactly once across the view table's own SQL and the versions table's companion CREATE TABLE")
}

func TestStateMigration_Build_IncludesEventDerivedColumns(t *testing.T) {
	m := StateMigration{TableName: "erc20_token_balances", CreateViewSQL: "CREATE TABLE erc20_token_balances ()"}
	up := m.Build().Up[0]

	for _, col := range []string{"contract_address", "chain_id", "block_hash", "block_number", "transaction_hash", "transaction_index", "log_index"} {
		require.Contains(t, up, col)
	}
	require.Contains(t, up, "LIKE erc20_token_balances INCLUDING DEFAULTS")
}

func TestStateMigration_Build_UniqueIndexCoversUserAndContextColumns(t *testing.T) {
	m := StateMigration{
		TableName:   "erc20_token_allowances",
		UserColumns: []string{"owner_address", "spender_address"},
	}
	up := m.Build().Up[0]

	require.Contains(t, up, "CREATE UNIQUE INDEX IF NOT EXISTS chaindexing_state_versions_for_erc20_token_allowances_unique_idx")
	require.Contains(t, up, "(owner_address, spender_address, chain_id, block_number, transaction_hash, log_index)")
}
