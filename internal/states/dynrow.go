package states

import (
	"database/sql"
	"fmt"
)

// Row is one dynamically-shaped state row. User state is decided entirely
// by user SQL, so the core carries it as a plain
// map rather than a generated Go struct; callers convert to/from their own
// domain type at the public API boundary.
type Row map[string]interface{}

// scanRows reads every row of rows into a slice of Row, keyed by column
// name. It is the one place this package leans on reflection/interface{}
// scanning instead of meddler, because the column set isn't known at
// compile time.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("states: failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("states: failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeScanned(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeScanned turns driver-returned []byte values (pq returns numeric,
// json, and some other types as []byte) into strings, which is the shape
// Row consumers expect to work with.
func normalizeScanned(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
