package orderstore

import (
	"context"
	"fmt"
	"strings"
)

// Backend is a store that hands out connections. Every operation acquires its
// own Conn and releases it before returning.
type Backend interface {
	Acquire(ctx context.Context) (Conn, error)
	Close() error
	Name() string
}

// Conn is one connection scoped to a single operation.
type Conn interface {
	Query(ctx context.Context, table TableDef, cmd CommandTemplate) (ResultSet, error)
	Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error)
	Begin(ctx context.Context) (Transaction, error)
	Release() error
}

// Transaction groups statements on one Conn. A Transaction must end with
// exactly one call to Commit or Rollback.
type Transaction interface {
	Exec(ctx context.Context, table TableDef, cmd CommandTemplate, args Args) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ResultSet is the raw shape of a select: column names in store order and
// one slice of driver values per row.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// normalize maps the result set onto the table, returning one field bag per
// row keyed by the table's column names. Any deviation from the table's
// column set, or a value that cannot be coerced to its column type, is a
// schema mismatch.
func (rs ResultSet) normalize(table TableDef) ([]map[string]any, error) {
	if len(rs.Columns) != len(table.Columns) {
		return nil, fmt.Errorf("%w: %s returned %d columns, want %d (%s)",
			ErrSchemaMismatch, table.Name, len(rs.Columns), len(table.Columns), strings.Join(table.ColumnNames(), ", "))
	}

	cols := make([]Column, len(rs.Columns))
	seen := make(map[string]bool, len(rs.Columns))
	for i, name := range rs.Columns {
		col, ok := table.Column(name)
		if !ok || seen[col.Name] {
			return nil, fmt.Errorf("%w: unexpected column %q in %s", ErrSchemaMismatch, name, table.Name)
		}
		seen[col.Name] = true
		cols[i] = col
	}

	out := make([]map[string]any, 0, len(rs.Rows))
	for n, raw := range rs.Rows {
		if len(raw) != len(cols) {
			return nil, fmt.Errorf("%w: row %d of %s has %d values", ErrSchemaMismatch, n, table.Name, len(raw))
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v, err := coerce(col, raw[i])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d of %s: %v", ErrSchemaMismatch, n, table.Name, err)
			}
			row[col.Name] = v
		}
		out = append(out, row)
	}
	return out, nil
}
