package encoding

import (
	"fmt"
	"strconv"
)

// FeatureColumns returns the columns used as model inputs: everything but
// trace_id and label.
func (t *Table) FeatureColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c != ColTraceID && c != ColLabel {
			out = append(out, c)
		}
	}
	return out
}

// Features converts an encoded table into a numeric matrix over
// FeatureColumns.
func Features(t *Table) ([][]float64, error) {
	cols := t.FeatureColumns()
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.ColumnIndex(c)
	}

	X := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		x := make([]float64, len(idx))
		for j, ci := range idx {
			v, err := strconv.ParseFloat(row[ci], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, t.Columns[ci], err)
			}
			x[j] = v
		}
		X[r] = x
	}
	return X, nil
}

// Targets reads the encoded label column as integer classes.
func Targets(t *Table) ([]int, error) {
	col, err := t.Column(ColLabel)
	if err != nil {
		return nil, err
	}
	y := make([]int, len(col))
	for i, v := range col {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("row %d label %q: %w", i, v, err)
		}
		y[i] = n
	}
	return y, nil
}
