package encoding

import (
	"errors"
	"fmt"

	"github.com/logflow/conformflow/internal/model"
)

// ErrInvalidPrefix is returned for a non-positive prefix length.
var ErrInvalidPrefix = errors.New("encoding: prefix length must be positive")

// Options configures simple-index encoding.
type Options struct {
	// PrefixLength is the number of leading events kept per trace.
	PrefixLength int

	// Padding fills short traces with PrefixPad. Without it short traces
	// are dropped.
	Padding bool

	// LabelAttribute names the trace attribute copied into the label column.
	LabelAttribute string
}

// SimpleIndex encodes every trace as one row: trace_id, the first
// PrefixLength activities, label.
func SimpleIndex(log *model.Log, opts Options) (*Table, error) {
	if opts.PrefixLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrefix, opts.PrefixLength)
	}
	labelAttr := opts.LabelAttribute
	if labelAttr == "" {
		labelAttr = ColLabel
	}

	cols := make([]string, 0, opts.PrefixLength+2)
	cols = append(cols, ColTraceID)
	for i := 1; i <= opts.PrefixLength; i++ {
		cols = append(cols, PrefixColumn(i))
	}
	cols = append(cols, ColLabel)

	t := NewTable(cols...)
	for i := range log.Traces {
		tr := &log.Traces[i]
		if tr.Len() < opts.PrefixLength && !opts.Padding {
			continue
		}
		row := make([]string, len(cols))
		row[0] = tr.CaseID
		for j := 0; j < opts.PrefixLength; j++ {
			if j < tr.Len() {
				row[j+1] = tr.Events[j].Activity
			} else {
				row[j+1] = PrefixPad
			}
		}
		label, _ := tr.Attr(labelAttr)
		row[len(row)-1] = label
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
