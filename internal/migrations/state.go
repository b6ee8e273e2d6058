package migrations

import (
	"database/sql"
	"fmt"
	"strings"

	migrate "github.com/rubenv/sql-migrate"
)

// versionsTablePrefix is the companion-table naming rule:
// chaindexing_state_versions_for_<table>.
const versionsTablePrefix = "chaindexing_state_versions_for_"

// VersionsTableName returns the companion version-history table name for a
// user state view table.
func VersionsTableName(viewTable string) string {
	return versionsTablePrefix + viewTable
}

// alwaysPresentColumns are the seven event-derived columns every versions
// table carries in addition to the user's own fields.
var alwaysPresentColumns = []string{
	"contract_address varchar NOT NULL",
	"chain_id bigint NOT NULL",
	"block_hash varchar NOT NULL",
	"block_number bigint NOT NULL",
	"transaction_hash varchar NOT NULL",
	"transaction_index int NOT NULL",
	"log_index int NOT NULL",
}

// StateMigration describes one user-declared state type: the raw SQL that
// creates its view table, and the list of non-id user columns the unique
// index over the versions table should cover. Callers build this alongside
// their Go state struct rather than having the migration builder infer
// columns from SQL, since parsing arbitrary CREATE TABLE SQL is out of
// scope here.
type StateMigration struct {
	TableName     string
	CreateViewSQL string
	UserColumns   []string
}

// Build produces the migrate.Migration that creates the versions table, its
// unique index, and ALTERs the view table to carry the seven context
// columns (for legacy installs whose view table predates them).
func (m StateMigration) Build() *migrate.Migration {
	versionsTable := VersionsTableName(m.TableName)

	var up strings.Builder
	up.WriteString(m.CreateViewSQL)
	up.WriteString(";\n")

	fmt.Fprintf(&up, "CREATE TABLE IF NOT EXISTS %s (\n", versionsTable)
	up.WriteString("    state_version_id bigserial PRIMARY KEY,\n")
	up.WriteString("    state_version_is_deleted bool NOT NULL DEFAULT false,\n")
	for _, col := range alwaysPresentColumns {
		fmt.Fprintf(&up, "    %s,\n", col)
	}
	// state_version_group_id is not declared here: the view table already
	// carries it, and LIKE below inherits it. Declaring it twice makes
	// Postgres reject the CREATE TABLE with "column specified more than
	// once".
	up.WriteString("    LIKE ")
	up.WriteString(m.TableName)
	up.WriteString(" INCLUDING DEFAULTS\n")
	up.WriteString(");\n")

	uniqueCols := append([]string{}, m.UserColumns...)
	uniqueCols = append(uniqueCols, "chain_id", "block_number", "transaction_hash", "log_index")
	fmt.Fprintf(&up, "CREATE UNIQUE INDEX IF NOT EXISTS %s_unique_idx ON %s (%s);\n",
		versionsTable, versionsTable, strings.Join(uniqueCols, ", "))

	fmt.Fprintf(&up, "CREATE INDEX IF NOT EXISTS %s_group_idx ON %s (state_version_group_id);\n",
		versionsTable, versionsTable)

	for _, col := range alwaysPresentColumns {
		name := strings.Fields(col)[0]
		typ := strings.TrimPrefix(col, name+" ")
		fmt.Fprintf(&up, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;\n", m.TableName, name, typ)
	}

	down := fmt.Sprintf("DROP TABLE IF EXISTS %s;\nDROP TABLE IF EXISTS %s;\n", versionsTable, m.TableName)

	return &migrate.Migration{
		Id:   "state_" + m.TableName,
		Up:   []string{up.String()},
		Down: []string{down},
	}
}

// RunStateMigrations applies one migration per declared state type.
func RunStateMigrations(database *sql.DB, states []StateMigration) error {
	migs := make([]*migrate.Migration, 0, len(states))
	for _, s := range states {
		migs = append(migs, s.Build())
	}
	return RunMemory(database, migs)
}
