package encoding

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/logflow/conformflow/internal/model"
)

// PopulationStart is the timestamp of the first synthetic event produced by
// ToLog. Later events follow at one hour intervals.
var PopulationStart = time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)

// PadActivity replaces PrefixPad when a table is turned back into events.
const PadActivity = "other"

var outcomeNames = map[string]string{
	"regular": "false",
	"deviant": "true",
}

// ToLog reshapes a decoded prefix table into an event log, one trace per
// distinct trace_id (first row wins). Traces are ordered by trace_id
// (numerically when both ids are integers) and events by prefix position.
// Timestamps run hourly from PopulationStart across the whole log. The label
// is stored as the trace attribute "label", with regular and deviant mapped
// to false and true.
func ToLog(t *Table) (*model.Log, error) {
	idIdx := t.ColumnIndex(ColTraceID)
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, ColTraceID)
	}
	labelIdx := t.ColumnIndex(ColLabel)
	prefixes := t.PrefixColumns()
	prefixIdx := make([]int, len(prefixes))
	for i, name := range prefixes {
		prefixIdx[i] = t.ColumnIndex(name)
	}

	seen := make(map[string]bool, t.Len())
	var rows [][]string
	for _, r := range t.Rows {
		if seen[r[idIdx]] {
			continue
		}
		seen[r[idIdx]] = true
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return lessID(rows[i][idIdx], rows[j][idIdx])
	})

	ts := PopulationStart
	traces := make([]model.Trace, 0, len(rows))
	for _, r := range rows {
		tr := model.Trace{CaseID: r[idIdx]}
		if labelIdx >= 0 {
			label := r[labelIdx]
			if mapped, ok := outcomeNames[label]; ok {
				label = mapped
			}
			tr.Attributes = append(tr.Attributes, model.Attribute{Key: ColLabel, Value: label})
		}
		for _, pi := range prefixIdx {
			act := r[pi]
			if act == PrefixPad {
				act = PadActivity
			}
			tr.Events = append(tr.Events, model.Event{
				CaseID:    tr.CaseID,
				Activity:  act,
				Timestamp: ts.UnixNano(),
			})
			ts = ts.Add(time.Hour)
		}
		traces = append(traces, tr)
	}
	return model.NewLog(traces), nil
}

func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
