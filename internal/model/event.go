// Package model defines core data structures for conformflow.
package model

import "sort"

// Standard XES attribute keys.
const (
	KeyConceptName = "concept:name"
	KeyTimestamp   = "time:timestamp"
	KeyResource    = "org:resource"
	KeyCaseName    = "case:concept:name"
)

// Event represents a single process mining event.
// Events are immutable once they have been assembled into a Trace.
type Event struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the event name/activity label.
	Activity string

	// Timestamp in nanoseconds since Unix epoch.
	Timestamp int64

	// Resource is the actor/resource performing the activity.
	Resource string

	// Attributes holds additional key-value pairs in document order.
	Attributes []Attribute

	// CaseOnly marks a placeholder that declares a case without events.
	// It carries the case attributes and is never added to a trace.
	CaseOnly bool
}

// Attribute represents a key-value pair for event metadata.
type Attribute struct {
	Key   string
	Value string
	Type  AttrType
}

// AttrType indicates the semantic type of an attribute value.
type AttrType uint8

const (
	AttrTypeString AttrType = iota
	AttrTypeInt
	AttrTypeFloat
	AttrTypeBool
	AttrTypeTimestamp
)

// Attr returns the value of the named attribute.
func (e *Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Trace is an ordered, named sequence of events belonging to one case.
type Trace struct {
	CaseID     string
	Attributes []Attribute
	Events     []Event
}

// Labels returns the activity sequence of the trace.
func (t *Trace) Labels() []string {
	labels := make([]string, len(t.Events))
	for i := range t.Events {
		labels[i] = t.Events[i].Activity
	}
	return labels
}

// Attr returns the value of a trace-level attribute.
func (t *Trace) Attr(key string) (string, bool) {
	for _, a := range t.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Len returns the number of events.
func (t *Trace) Len() int {
	return len(t.Events)
}

// Log is an ordered collection of traces.
type Log struct {
	Traces []Trace

	index map[string]int
}

// NewLog creates a log from traces, keeping their order.
func NewLog(traces []Trace) *Log {
	l := &Log{Traces: traces}
	l.reindex()
	return l
}

func (l *Log) reindex() {
	l.index = make(map[string]int, len(l.Traces))
	for i := range l.Traces {
		l.index[l.Traces[i].CaseID] = i
	}
}

// Len returns the number of traces.
func (l *Log) Len() int {
	return len(l.Traces)
}

// Case returns the trace with the given case identifier.
func (l *Log) Case(id string) (*Trace, bool) {
	if l.index == nil {
		l.reindex()
	}
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return &l.Traces[i], true
}

// Alphabet returns the sorted set of distinct activity labels.
func (l *Log) Alphabet() []string {
	seen := make(map[string]struct{})
	for i := range l.Traces {
		for j := range l.Traces[i].Events {
			seen[l.Traces[i].Events[j].Activity] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Events returns the total number of events across all traces.
func (l *Log) Events() int {
	n := 0
	for i := range l.Traces {
		n += len(l.Traces[i].Events)
	}
	return n
}
