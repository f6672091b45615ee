package orderstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ImportCSV inserts the rows of a CSV stream into table, all in one
// transaction. The first line must name the table's columns, in any order.
// Empty values in nullable columns are stored as null. It returns the number
// of rows inserted.
func (s *Storage) ImportCSV(ctx context.Context, table string, r io.Reader) (int, error) {
	tb, err := s.catalog.Table(table)
	if err != nil {
		return 0, err
	}
	cmd := insertCommand(tb, insertText(tb))

	rd := csv.NewReader(r)
	header, err := rd.Read()
	if err != nil {
		return 0, opError("import", tb.Name, nil, fmt.Errorf("reading header: %w", err))
	}

	cols := make([]Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		col, ok := tb.Column(strings.TrimSpace(name))
		if !ok || seen[col.Name] {
			return 0, opError("import", tb.Name, nil, fmt.Errorf("%w: columns header doesn't match the table columns", ErrSchemaMismatch))
		}
		seen[col.Name] = true
		cols[i] = col
	}
	if len(cols) != len(tb.Columns) {
		return 0, opError("import", tb.Name, nil, fmt.Errorf("%w: column count in CSV does not match table", ErrSchemaMismatch))
	}

	logger := s.logger.WithField("table", tb.Name)
	count := 0
	err = withTransaction(ctx, s.backend, logger, func(tx Transaction) error {
		for {
			line, err := rd.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			fields := make(map[string]any, len(line))
			for i, val := range line {
				val = strings.TrimSpace(val)
				if val == "" && cols[i].AllowNull {
					fields[cols[i].Name] = nil
					continue
				}
				fields[cols[i].Name] = val
			}
			values, err := coerceFields(tb, fields)
			if err != nil {
				return fmt.Errorf("line %d: %w", count+2, err)
			}

			if _, err := tx.Exec(ctx, tb, cmd, cmd.Bind(values, nil)); err != nil {
				return fmt.Errorf("line %d: %w", count+2, err)
			}
			count++
		}
	})
	if err != nil {
		return 0, opError("import", tb.Name, nil, err)
	}

	logger.WithField("rows", count).Info("csv imported")
	return count, nil
}

// insertText renders a plain INSERT for every column of the table.
func insertText(tb TableDef) string {
	names := tb.ColumnNames()
	params := Map(names, func(n string) string { return ":" + n })
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tb.FullTableName(), strings.Join(names, ", "), strings.Join(params, ", "))
}
