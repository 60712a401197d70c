// Package encoding turns traces into fixed-width prefix tables and back.
package encoding

import (
	"errors"
	"fmt"
)

// Standard column names.
const (
	ColTraceID = "trace_id"
	ColLabel   = "label"
	// PrefixPad fills prefix positions past the end of a short trace.
	PrefixPad = "0"
)

var (
	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("encoding: unknown column")

	// ErrShapeMismatch is returned when tables or rows disagree on width.
	ErrShapeMismatch = errors.New("encoding: column mismatch")
)

// PrefixColumn returns the name of the i-th prefix column, counting from 1.
func PrefixColumn(i int) string {
	return fmt.Sprintf("prefix_%d", i)
}

// Table is a row-major table of string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of a column's values.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Append adds rows. Every row must match the column count.
func (t *Table) Append(rows ...[]string) error {
	for _, r := range rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("%w: row has %d cells, table has %d columns", ErrShapeMismatch, len(r), len(t.Columns))
		}
		t.Rows = append(t.Rows, append([]string(nil), r...))
	}
	return nil
}

// Select returns a new table holding the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]string, 0, len(rows))
	for _, i := range rows {
		out.Rows = append(out.Rows, append([]string(nil), t.Rows[i]...))
	}
	return out
}

// Filter returns the rows for which keep is true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := NewTable(t.Columns...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, append([]string(nil), r...))
		}
	}
	return out
}

// FilterIDs keeps the rows whose trace_id is in ids.
func (t *Table) FilterIDs(ids map[string]bool) (*Table, error) {
	idx := t.ColumnIndex(ColTraceID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, ColTraceID)
	}
	return t.Filter(func(row []string) bool { return ids[row[idx]] }), nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return t.Select(allRows(t.Len()))
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Concat stacks tables with identical columns.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(), nil
	}
	out := NewTable(tables[0].Columns...)
	for _, t := range tables {
		if !sameColumns(out.Columns, t.Columns) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, out.Columns, t.Columns)
		}
		for _, r := range t.Rows {
			out.Rows = append(out.Rows, append([]string(nil), r...))
		}
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrefixColumns returns the prefix column names in order.
func (t *Table) PrefixColumns() []string {
	var out []string
	for i := 1; ; i++ {
		name := PrefixColumn(i)
		if t.ColumnIndex(name) < 0 {
			return out
		}
		out = append(out, name)
	}
}
