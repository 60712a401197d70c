package encoding

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a value was not seen by Fit.
	ErrUnknownCategory = errors.New("encoding: unknown category")

	// ErrUnknownCode is returned when decoding a code with no category.
	ErrUnknownCode = errors.New("encoding: unknown code")

	// ErrNotFitted is returned when the encoder has no mapping for a column.
	ErrNotFitted = errors.New("encoding: encoder not fitted for column")
)

// negativeLabels sort before every other label value so that the regular
// outcome is always code 0.
var negativeLabels = map[string]int{
	"false":   0,
	"regular": 0,
	"0":       0,
	"":        1,
}

// LabelEncoder maps categorical cells to integer codes per column. The
// trace_id column is left untouched. In prefix columns the padding value
// always gets code 0.
type LabelEncoder struct {
	columns    []string
	categories map[string][]string
	codes      map[string]map[string]int
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{
		categories: make(map[string][]string),
		codes:      make(map[string]map[string]int),
	}
}

// Fit learns the categories of every column except trace_id. Categories
// are assigned in sorted order.
func (e *LabelEncoder) Fit(t *Table) {
	e.columns = e.columns[:0]
	for ci, name := range t.Columns {
		if name == ColTraceID {
			continue
		}
		seen := make(map[string]struct{})
		for _, row := range t.Rows {
			seen[row[ci]] = struct{}{}
		}

		var cats []string
		if name == ColLabel {
			cats = sortedLabels(seen)
		} else {
			delete(seen, PrefixPad)
			cats = append(cats, PrefixPad)
			cats = append(cats, sortedKeys(seen)...)
		}

		codes := make(map[string]int, len(cats))
		for code, c := range cats {
			codes[c] = code
		}
		e.columns = append(e.columns, name)
		e.categories[name] = cats
		e.codes[name] = codes
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedLabels(m map[string]struct{}) []string {
	out := sortedKeys(m)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iNeg := negativeLabels[strings.ToLower(out[i])]
		rj, jNeg := negativeLabels[strings.ToLower(out[j])]
		if !iNeg {
			ri = 2
		}
		if !jNeg {
			rj = 2
		}
		return ri < rj
	})
	return out
}

// Categories returns the categories of a column ordered by code.
func (e *LabelEncoder) Categories(column string) []string {
	return append([]string(nil), e.categories[column]...)
}

// Code returns the code of a value in a column.
func (e *LabelEncoder) Code(column, value string) (int, error) {
	codes, ok := e.codes[column]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFitted, column)
	}
	c, ok := codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q in column %q", ErrUnknownCategory, value, column)
	}
	return c, nil
}

// Value returns the category of a code in a column.
func (e *LabelEncoder) Value(column string, code int) (string, error) {
	cats, ok := e.categories[column]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFitted, column)
	}
	if code < 0 || code >= len(cats) {
		return "", fmt.Errorf("%w: %d in column %q", ErrUnknownCode, code, column)
	}
	return cats[code], nil
}

// Encode returns a copy of t with categories replaced by their codes.
func (e *LabelEncoder) Encode(t *Table) (*Table, error) {
	out := t.Clone()
	for ci, name := range out.Columns {
		if name == ColTraceID {
			continue
		}
		for _, row := range out.Rows {
			code, err := e.Code(name, row[ci])
			if err != nil {
				return nil, err
			}
			row[ci] = strconv.Itoa(code)
		}
	}
	return out, nil
}

// Decode reverses Encode.
func (e *LabelEncoder) Decode(t *Table) (*Table, error) {
	out := t.Clone()
	for ci, name := range out.Columns {
		if name == ColTraceID {
			continue
		}
		for _, row := range out.Rows {
			code, err := strconv.Atoi(row[ci])
			if err != nil {
				return nil, fmt.Errorf("%w: %q in column %q", ErrUnknownCode, row[ci], name)
			}
			v, err := e.Value(name, code)
			if err != nil {
				return nil, err
			}
			row[ci] = v
		}
	}
	return out, nil
}
