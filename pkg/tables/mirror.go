package tables

import (
	"context"
	"fmt"
)

// Mirror copies every row of the given tables from src to dst.
// This works for:
// - Remote -> MemTable (backup / offline fixture)
// - MemTable -> Remote (seeding a fresh backend)
// conflictKeys maps a table to its upsert key; tables without one are
// inserted plainly. It returns the number of rows copied per table.
func Mirror(ctx context.Context, src Fetcher, dst Inserter, tableNames []string, conflictKeys map[string]string, cred string) (map[string]int, error) {
	copied := make(map[string]int, len(tableNames))
	for _, table := range tableNames {
		rows, err := src.Fetch(ctx, table, Query{}, cred)
		if err != nil {
			return copied, fmt.Errorf("failed to read table %s: %w", table, err)
		}
		if len(rows) == 0 {
			copied[table] = 0
			continue
		}
		if _, err := dst.Insert(ctx, table, conflictKeys[table], rows, cred); err != nil {
			return copied, fmt.Errorf("failed to write table %s: %w", table, err)
		}
		copied[table] = len(rows)
	}
	return copied, nil
}
