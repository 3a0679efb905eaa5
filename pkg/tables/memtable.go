package tables

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemTable is a thread-safe in-process table service. It backs the
// development daemon and the tests.
type MemTable struct {
	mu sync.RWMutex
	// Structure: [table][]row, insertion order preserved
	data map[string][]Row
}

// NewMemTable initializes a table service with existing data (from a dump).
func NewMemTable(initialData map[string][]Row) *MemTable {
	data := make(map[string][]Row, len(initialData))
	for table, rows := range initialData {
		for _, r := range rows {
			data[table] = append(data[table], normalizeRow(r))
		}
	}
	return &MemTable{data: data}
}

func (m *MemTable) Fetch(_ context.Context, table string, q Query, _ string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, r := range m.data[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, &RemoteError{Op: "fetch", Table: table, Status: 400, Err: err}
		}
		if ok {
			out = append(out, r)
		}
	}
	sortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return project(out, q.Select), nil
}

func (m *MemTable) Insert(_ context.Context, table, onConflict string, rows []Row, _ string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := splitColumns(onConflict)
	var out []Row
	for _, in := range rows {
		row := normalizeRow(in)
		if _, ok := row["id"]; !ok {
			row["id"] = uuid.NewString()
		}
		if idx := m.conflictIndex(table, keys, row); idx >= 0 {
			merged := maps.Clone(m.data[table][idx])
			maps.Copy(merged, row)
			if _, ok := in["id"]; !ok {
				merged["id"] = m.data[table][idx]["id"]
			}
			m.data[table][idx] = merged
			out = append(out, maps.Clone(merged))
			continue
		}
		m.data[table] = append(m.data[table], row)
		out = append(out, maps.Clone(row))
	}
	return out, nil
}

func (m *MemTable) Update(_ context.Context, table string, q Query, patch Row, _ string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	patch = normalizeRow(patch)
	var out []Row
	for i, r := range m.data[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, &RemoteError{Op: "update", Table: table, Status: 400, Err: err}
		}
		if !ok {
			continue
		}
		updated := maps.Clone(r)
		maps.Copy(updated, patch)
		m.data[table][i] = updated
		out = append(out, maps.Clone(updated))
	}
	return out, nil
}

func (m *MemTable) Delete(_ context.Context, table string, q Query, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []Row
	for _, r := range m.data[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return &RemoteError{Op: "delete", Table: table, Status: 400, Err: err}
		}
		if !ok {
			kept = append(kept, r)
		}
	}
	m.data[table] = kept
	return nil
}

// Dump returns a deep copy of every table, suitable for saving to disk.
func (m *MemTable) Dump() map[string][]Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]Row, len(m.data))
	for table, rows := range m.data {
		cp := make([]Row, len(rows))
		for i, r := range rows {
			cp[i] = normalizeRow(r)
		}
		out[table] = cp
	}
	return out
}

// Tables lists table names that hold at least one row.
func (m *MemTable) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []string
	for t, rows := range m.data {
		if len(rows) > 0 {
			list = append(list, t)
		}
	}
	slices.Sort(list)
	return list
}

// conflictIndex finds the row sharing every conflict column with row.
// It MUST be called while holding m.mu.
func (m *MemTable) conflictIndex(table string, keys []string, row Row) int {
	if len(keys) == 0 {
		return -1
	}
	for i, existing := range m.data[table] {
		same := true
		for _, k := range keys {
			if fmt.Sprint(existing[k]) != fmt.Sprint(row[k]) {
				same = false
				break
			}
		}
		if same {
			return i
		}
	}
	return -1
}

// normalizeRow deep-copies r through JSON so stored values have the same
// shapes a remote backend would return.
func normalizeRow(r Row) Row {
	b, err := json.Marshal(r)
	if err != nil {
		return maps.Clone(r)
	}
	var out Row
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return Row{}
	}
	return out
}

func splitColumns(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func matches(r Row, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, present := r[f.Column]
		cell := ""
		if present && v != nil {
			cell = fmt.Sprint(v)
		}
		switch f.Op {
		case OpEq:
			if cell != f.Value {
				return false, nil
			}
		case OpNeq:
			if cell == f.Value {
				return false, nil
			}
		case OpIn:
			set := splitColumns(strings.Trim(f.Value, "()"))
			if !slices.Contains(set, cell) {
				return false, nil
			}
		case OpGt, OpGte, OpLt, OpLte:
			c := compareCells(cell, f.Value)
			switch {
			case f.Op == OpGt && c <= 0,
				f.Op == OpGte && c < 0,
				f.Op == OpLt && c >= 0,
				f.Op == OpLte && c > 0:
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return true, nil
}

// compareCells compares numerically when both sides parse as numbers, by
// instant when both parse as RFC 3339 timestamps, and lexically otherwise.
// Timestamps with fractional seconds of different lengths do not sort as
// strings.
func compareCells(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

func sortRows(rows []Row, order []Order) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		for _, o := range order {
			c := compareCells(fmt.Sprint(a[o.Column]), fmt.Sprint(b[o.Column]))
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func project(rows []Row, cols []string) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		if len(cols) == 0 {
			out[i] = maps.Clone(r)
			continue
		}
		p := make(Row, len(cols))
		for _, c := range cols {
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out[i] = p
	}
	return out
}
