package migrations

import (
	"database/sql"
	"fmt"
)

// Reset truncates the internal event/cursor tables and every user state
// table, resets contract-address cursors back to their start block, and
// runs the user's reset_queries. Everything except the nodes
// and root_state tables, which must survive a reset.
func Reset(database *sql.DB, stateViewTables []string, resetQueries []string) error {
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("migrations: reset: failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		"TRUNCATE TABLE chaindexing_events",
		"TRUNCATE TABLE chaindexing_reorged_blocks",
		"DELETE FROM chaindexing_handler_subscriptions",
		"UPDATE chaindexing_contract_addresses SET next_block_number_to_ingest_from = start_block_number, next_block_number_to_handle_from = start_block_number",
	}
	for _, table := range stateViewTables {
		stmts = append(stmts, fmt.Sprintf("TRUNCATE TABLE %s", table))
		stmts = append(stmts, fmt.Sprintf("TRUNCATE TABLE %s", VersionsTableName(table)))
	}
	stmts = append(stmts, resetQueries...)

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrations: reset: failed to execute %q: %w", stmt, err)
		}
	}

	return tx.Commit()
}

// ResetIncludingSideEffects nullifies every chain's side-effect cursor so
// side-effect handlers re-fire for already-persisted events, without
// touching the pure-handler cursor.
func ResetIncludingSideEffects(database *sql.DB) error {
	if _, err := database.Exec("UPDATE chaindexing_handler_subscriptions SET next_block_number_for_side_effect = 0"); err != nil {
		return fmt.Errorf("migrations: reset including side effects: %w", err)
	}
	return nil
}
