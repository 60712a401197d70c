// Package inspect profiles event logs before encoding: trace lengths,
// variants, outcome labels and how many cases survive each prefix cut.
package inspect

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/logflow/conformflow/internal/model"
	"github.com/logflow/conformflow/pkg/eventlog"
)

// Report describes a loaded log.
type Report struct {
	Traces     int `json:"traces"`
	Events     int `json:"events"`
	Activities int `json:"activities"`
	Variants   int `json:"variants"`

	MinTimestamp time.Time `json:"min_timestamp"`
	MaxTimestamp time.Time `json:"max_timestamp"`
	TimeSpan     string    `json:"time_span"`

	Lengths       LengthMetrics   `json:"lengths"`
	TopActivities []Count         `json:"top_activities"`
	Labels        []Count         `json:"labels"`
	Prefixes      []PrefixSupport `json:"prefixes,omitempty"`

	Issues   []Issue  `json:"issues"`
	Warnings []string `json:"warnings"`
}

// LengthMetrics summarizes events per trace.
type LengthMetrics struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median int     `json:"median"`
}

// Count is a value with its frequency.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PrefixSupport reports how a prefix length cuts the log. Short traces are
// padded by the encoder rather than dropped.
type PrefixSupport struct {
	Length int     `json:"length"`
	Full   int     `json:"full"`
	Padded int     `json:"padded"`
	Share  float64 `json:"full_share"`
}

// Issue describes a problem that affects encoding or training.
type Issue struct {
	Severity    string `json:"severity"` // "error", "warning"
	Category    string `json:"category"` // "completeness", "consistency", "labels"
	Description string `json:"description"`
	Affected    int    `json:"affected"`
}

// Analyzer accumulates trace statistics. Safe for concurrent Add.
type Analyzer struct {
	mu sync.Mutex

	labelAttr string

	traces  int
	events  int
	lengths []int

	minTimestamp int64
	maxTimestamp int64

	activities map[string]int
	labels     map[string]int
	variants   map[string]struct{}

	emptyTraces     int
	unlabeled       int
	missingTimes    int
	outOfOrder      int
	emptyActivities int
}

// NewAnalyzer creates an analyzer reading outcome labels from labelAttr.
func NewAnalyzer(labelAttr string) *Analyzer {
	if labelAttr == "" {
		labelAttr = eventlog.DefaultLabelAttribute
	}
	return &Analyzer{
		labelAttr:    labelAttr,
		minTimestamp: math.MaxInt64,
		maxTimestamp: math.MinInt64,
		activities:   make(map[string]int),
		labels:       make(map[string]int),
		variants:     make(map[string]struct{}),
	}
}

// Analyze profiles every trace of the log.
func Analyze(log *model.Log, labelAttr string, prefixes ...int) *Report {
	a := NewAnalyzer(labelAttr)
	for i := range log.Traces {
		a.Add(&log.Traces[i])
	}
	return a.Report(prefixes...)
}

// Add records one trace.
func (a *Analyzer) Add(tr *model.Trace) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.traces++
	a.events += tr.Len()
	a.lengths = append(a.lengths, tr.Len())
	if tr.Len() == 0 {
		a.emptyTraces++
	}

	if label := eventlog.Label(tr, a.labelAttr); label != "" {
		a.labels[label]++
	} else {
		a.unlabeled++
	}
	a.variants[strings.Join(tr.Labels(), "\x00")] = struct{}{}

	var last int64
	for i := range tr.Events {
		ev := &tr.Events[i]
		if ev.Activity == "" {
			a.emptyActivities++
		} else {
			a.activities[ev.Activity]++
		}
		if ev.Timestamp == 0 {
			a.missingTimes++
			continue
		}
		if ev.Timestamp < a.minTimestamp {
			a.minTimestamp = ev.Timestamp
		}
		if ev.Timestamp > a.maxTimestamp {
			a.maxTimestamp = ev.Timestamp
		}
		if ev.Timestamp < last {
			a.outOfOrder++
		}
		last = ev.Timestamp
	}
}

// Report builds the profile. Each prefix length gets a PrefixSupport row.
func (a *Analyzer) Report(prefixes ...int) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &Report{
		Traces:     a.traces,
		Events:     a.events,
		Activities: len(a.activities),
		Variants:   len(a.variants),
	}
	if a.minTimestamp != math.MaxInt64 {
		r.MinTimestamp = time.Unix(0, a.minTimestamp).UTC()
		r.MaxTimestamp = time.Unix(0, a.maxTimestamp).UTC()
		r.TimeSpan = time.Duration(a.maxTimestamp - a.minTimestamp).String()
	}

	lengths := append([]int(nil), a.lengths...)
	sort.Ints(lengths)
	if n := len(lengths); n > 0 {
		r.Lengths = LengthMetrics{
			Min:    lengths[0],
			Max:    lengths[n-1],
			Mean:   float64(a.events) / float64(n),
			Median: lengths[n/2],
		}
	}
	for _, p := range prefixes {
		full := len(lengths) - sort.SearchInts(lengths, p)
		ps := PrefixSupport{Length: p, Full: full, Padded: len(lengths) - full}
		if len(lengths) > 0 {
			ps.Share = float64(full) / float64(len(lengths))
		}
		r.Prefixes = append(r.Prefixes, ps)
	}

	r.TopActivities = topN(a.activities, 10)
	r.Labels = topN(a.labels, len(a.labels))
	r.Issues = a.detectIssues()
	r.Warnings = a.generateWarnings(r)
	return r
}

// topN returns the n most frequent values, ties broken by value.
func topN(m map[string]int, n int) []Count {
	sorted := make([]Count, 0, len(m))
	for k, v := range m {
		sorted = append(sorted, Count{Value: k, Count: v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Value < sorted[j].Value
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func (a *Analyzer) detectIssues() []Issue {
	var issues []Issue
	if a.emptyTraces > 0 {
		issues = append(issues, Issue{
			Severity:    "warning",
			Category:    "completeness",
			Description: "Traces without events",
			Affected:    a.emptyTraces,
		})
	}
	if a.emptyActivities > 0 {
		issues = append(issues, Issue{
			Severity:    "error",
			Category:    "completeness",
			Description: "Events without an activity name",
			Affected:    a.emptyActivities,
		})
	}
	if a.unlabeled > 0 {
		issues = append(issues, Issue{
			Severity:    "error",
			Category:    "labels",
			Description: fmt.Sprintf("Traces without a %q attribute", a.labelAttr),
			Affected:    a.unlabeled,
		})
	}
	if a.outOfOrder > 0 {
		issues = append(issues, Issue{
			Severity:    "warning",
			Category:    "consistency",
			Description: "Timestamps not in chronological order within a trace",
			Affected:    a.outOfOrder,
		})
	}
	return issues
}

func (a *Analyzer) generateWarnings(r *Report) []string {
	var warnings []string
	if len(a.labels) == 1 {
		warnings = append(warnings, fmt.Sprintf("Only one outcome label (%s); a classifier cannot be trained", r.Labels[0].Value))
	}
	if a.events > 0 && float64(a.missingTimes)/float64(a.events) > 0.5 {
		warnings = append(warnings, fmt.Sprintf("%.1f%% of events have no timestamp", 100*float64(a.missingTimes)/float64(a.events)))
	}
	for _, p := range r.Prefixes {
		if a.traces > 0 && p.Share < 0.5 {
			warnings = append(warnings, fmt.Sprintf("Prefix length %d pads %.1f%% of traces", p.Length, 100*(1-p.Share)))
		}
	}
	return warnings
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
