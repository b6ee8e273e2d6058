package states

import (
	"context"
	"fmt"
	"sort"
	"strings"

	dbpkg "github.com/goran-ethernal/chaindexor/internal/db"
	"github.com/goran-ethernal/chaindexor/internal/events"
)

// Scope controls which context filters ReadMany adds on top of the user's
// own filters.
type Scope int

const (
	// ScopeContract adds chain_id and contract_address.
	ScopeContract Scope = iota
	// ScopeChain adds only chain_id.
	ScopeChain
	// ScopeMultiChain adds nothing.
	ScopeMultiChain
)

// ReadMany issues SELECT * FROM T_view WHERE <user filters> AND <context
// filters>. The legacy source generated "SELECT FROM ... WHERE ..." (missing
// the "*") in this path; that is treated as a typo here, per the Design
// Notes open question, and a correct "SELECT *" is always emitted.
func ReadMany(ctx context.Context, q dbpkg.Querier, table string, filters Row, scope Scope, e *events.Event) ([]Row, error) {
	clauses := make([]string, 0, len(filters)+2)
	args := make([]interface{}, 0, len(filters)+2)

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, filters[k])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", quoteIdent(k), len(args)))
	}

	switch scope {
	case ScopeContract:
		args = append(args, e.ChainID)
		clauses = append(clauses, fmt.Sprintf("chain_id = $%d", len(args)))
		args = append(args, strings.ToLower(e.ContractAddress.Hex()))
		clauses = append(clauses, fmt.Sprintf("contract_address = $%d", len(args)))
	case ScopeChain:
		args = append(args, e.ChainID)
		clauses = append(clauses, fmt.Sprintf("chain_id = $%d", len(args)))
	case ScopeMultiChain:
		// No context filter.
	}

	query := fmt.Sprintf("SELECT * FROM %s", table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("states: read_many failed on %s: %w", table, err)
	}
	return scanRows(rows)
}
