// Package states implements the append-only state_versions log and the
// materialized state_views it refreshes from, plus backtracking on reorg.
package states

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
	"github.com/goran-ethernal/chaindexor/internal/events"
	"github.com/goran-ethernal/chaindexor/internal/migrations"
)

// versionOnlyColumns are stripped when projecting a version row down into a
// view row.
var versionOnlyColumns = map[string]bool{
	"state_version_id":         true,
	"state_version_is_deleted": true,
}

// eventDerivedFields extracts the seven columns every version row carries
// in addition to its user fields.
func eventDerivedFields(e *events.Event) Row {
	return Row{
		"contract_address":  strings.ToLower(e.ContractAddress.Hex()),
		"chain_id":           e.ChainID,
		"transaction_hash":   strings.ToLower(e.TransactionHash.Hex()),
		"transaction_index":  e.TransactionIndex,
		"log_index":          e.LogIndex,
		"block_number":       e.BlockNumber,
		"block_hash":         strings.ToLower(e.BlockHash.Hex()),
	}
}

// CreateVersion inserts a brand-new logical state row: a fresh
// state_version_group_id, the caller's fields, and the seven event-derived
// columns.
func CreateVersion(ctx context.Context, q dbpkg.Querier, table string, fields Row, e *events.Event) (Row, error) {
	groupID := uuid.New()
	all := Row{}
	for k, v := range fields {
		all[k] = v
	}
	for k, v := range eventDerivedFields(e) {
		all[k] = v
	}
	all["state_version_group_id"] = groupID.String()
	all["state_version_is_deleted"] = false

	return insertVersion(ctx, q, table, all)
}

// UpdateVersion appends a new version to an existing logical row's group:
// it carries the group id forward and overlays updates on the group's
// current latest fields.
func UpdateVersion(ctx context.Context, q dbpkg.Querier, table string, groupID uuid.UUID, updates Row, e *events.Event) (Row, error) {
	latest, err := LatestVersion(ctx, q, table, groupID)
	if err != nil {
		return nil, fmt.Errorf("states: update: failed to load latest version: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("states: update: no existing version for group %s", groupID)
	}

	all := Row{}
	for k, v := range latest {
		if !versionOnlyColumns[k] {
			all[k] = v
		}
	}
	for k, v := range updates {
		all[k] = v
	}
	for k, v := range eventDerivedFields(e) {
		all[k] = v
	}
	all["state_version_group_id"] = groupID.String()
	all["state_version_is_deleted"] = false

	return insertVersion(ctx, q, table, all)
}

// DeleteVersion appends a tombstone version: the group's latest fields,
// re-stamped with the triggering event, marked deleted.
func DeleteVersion(ctx context.Context, q dbpkg.Querier, table string, groupID uuid.UUID, e *events.Event) (Row, error) {
	latest, err := LatestVersion(ctx, q, table, groupID)
	if err != nil {
		return nil, fmt.Errorf("states: delete: failed to load latest version: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("states: delete: no existing version for group %s", groupID)
	}

	all := Row{}
	for k, v := range latest {
		if !versionOnlyColumns[k] {
			all[k] = v
		}
	}
	for k, v := range eventDerivedFields(e) {
		all[k] = v
	}
	all["state_version_group_id"] = groupID.String()
	all["state_version_is_deleted"] = true

	return insertVersion(ctx, q, table, all)
}

func insertVersion(ctx context.Context, q dbpkg.Querier, table string, row Row) (Row, error) {
	versionsTable := migrations.VersionsTableName(table)

	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
		quoted[i] = quoteIdent(col)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		versionsTable, strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	)

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("states: failed to insert version into %s: %w", versionsTable, err)
	}
	results, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("states: insert into %s returned no row", versionsTable)
	}
	return results[0], nil
}

// LatestVersion returns the group's current latest version, ordered by
// (block_number, log_index) DESC, whether or not it is deleted.
func LatestVersion(ctx context.Context, q dbpkg.Querier, table string, groupID uuid.UUID) (Row, error) {
	versionsTable := migrations.VersionsTableName(table)
	rows, err := q.Query(
		fmt.Sprintf(`SELECT * FROM %s WHERE state_version_group_id = $1 ORDER BY block_number DESC, log_index DESC LIMIT 1`, versionsTable),
		groupID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("states: failed to load latest version from %s: %w", versionsTable, err)
	}
	results, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// No version remains for this group — it was fully backtracked away.
		return nil, nil
	}
	return results[0], nil
}

// RefreshView replaces the view row for a logical entity with the one
// derived from its latest surviving version, or removes it entirely if the
// latest version is a tombstone.
func RefreshView(ctx context.Context, q dbpkg.Querier, table string, groupID uuid.UUID) error {
	if _, err := q.Exec(fmt.Sprintf(`DELETE FROM %s WHERE state_version_group_id = $1`, table), groupID.String()); err != nil {
		return fmt.Errorf("states: failed to clear view row in %s: %w", table, err)
	}

	latest, err := LatestVersion(ctx, q, table, groupID)
	if err != nil {
		return fmt.Errorf("states: refresh: failed to load latest version: %w", err)
	}
	if latest == nil || truthy(latest["state_version_is_deleted"]) {
		return nil
	}

	cols := make([]string, 0, len(latest))
	for col := range latest {
		if !versionOnlyColumns[col] {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = latest[col]
		quoted[i] = quoteIdent(col)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := q.Exec(query, args...); err != nil {
		return fmt.Errorf("states: failed to insert view row into %s: %w", table, err)
	}
	return nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "t"
	default:
		return false
	}
}

// BacktrackByBlock deletes every version at or after blockNumber on chainID
// and refreshes the view for every affected group — the mechanical replay the
// reorg handler relies on.
func BacktrackByBlock(ctx context.Context, q dbpkg.Querier, table string, chainID, blockNumber uint64) error {
	versionsTable := migrations.VersionsTableName(table)

	rows, err := q.Query(
		fmt.Sprintf(`SELECT state_version_id, state_version_group_id FROM %s WHERE chain_id = $1 AND block_number >= $2`, versionsTable),
		chainID, blockNumber,
	)
	if err != nil {
		return fmt.Errorf("states: backtrack: failed to select affected versions: %w", err)
	}
	affected, err := scanRows(rows)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}

	ids := make([]interface{}, 0, len(affected))
	groupIDs := make(map[string]bool, len(affected))
	for _, r := range affected {
		ids = append(ids, r["state_version_id"])
		if g, ok := r["state_version_group_id"].(string); ok {
			groupIDs[g] = true
		}
	}

	placeholders := make([]string, len(ids))
	for i := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE state_version_id IN (%s)`, versionsTable, strings.Join(placeholders, ", "))
	if _, err := q.Exec(deleteQuery, ids...); err != nil {
		return fmt.Errorf("states: backtrack: failed to delete versions: %w", err)
	}

	for g := range groupIDs {
		groupID, err := uuid.Parse(g)
		if err != nil {
			return fmt.Errorf("states: backtrack: invalid group id %q: %w", g, err)
		}
		if err := RefreshView(ctx, q, table, groupID); err != nil {
			return fmt.Errorf("states: backtrack: failed to refresh group %s: %w", g, err)
		}
	}

	return nil
}
