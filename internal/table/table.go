// Package table holds raw two-dimensional cell tables.
package table

import (
	"fmt"

	"hadr/internal/pcl"
)

// Table is a named-column grid of raw cells. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]pcl.Cell
}

// New returns an empty table with the given columns.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Indexes resolves every name to a position and fails on the first absent one.
func (t *Table) Indexes(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		idx := t.Index(n)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", n)
		}
		out[i] = idx
	}
	return out, nil
}

// Append adds a row. Short rows are padded with empty cells; long rows are an error.
func (t *Table) Append(row []pcl.Cell) error {
	if len(row) > len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	if len(row) < len(t.Columns) {
		padded := make([]pcl.Cell, len(t.Columns))
		copy(padded, row)
		row = padded
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Project returns a new table holding only the named columns, in the given order.
func (t *Table) Project(names []string) (*Table, error) {
	idx, err := t.Indexes(names)
	if err != nil {
		return nil, err
	}
	out := &Table{Columns: append([]string(nil), names...), Rows: make([][]pcl.Cell, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make([]pcl.Cell, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// Filter returns a table sharing rows for which keep returns true.
func (t *Table) Filter(keep func(row []pcl.Cell) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// AddColumn appends a column whose cells are produced by fn for each row.
func (t *Table) AddColumn(name string, fn func(row []pcl.Cell) pcl.Cell) {
	t.Columns = append(t.Columns, name)
	for i, row := range t.Rows {
		nr := make([]pcl.Cell, len(row), len(row)+1)
		copy(nr, row)
		t.Rows[i] = append(nr, fn(row))
	}
}

// Column returns the cells of the named column.
func (t *Table) Column(name string) ([]pcl.Cell, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]pcl.Cell, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Rename replaces the column names. The count must not change.
func (t *Table) Rename(names []string) error {
	if len(names) != len(t.Columns) {
		return fmt.Errorf("rename: %d names for %d columns", len(names), len(t.Columns))
	}
	t.Columns = append([]string(nil), names...)
	return nil
}

// IsBlank reports whether every cell of row is empty.
func IsBlank(row []pcl.Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
