package inspect

import (
	"strings"
	"testing"

	"github.com/logflow/conformflow/internal/model"
)

func trace(id, label string, acts ...string) model.Trace {
	tr := model.Trace{CaseID: id}
	if label != "" {
		tr.Attributes = []model.Attribute{{Key: "label", Value: label}}
	}
	for i, a := range acts {
		tr.Events = append(tr.Events, model.Event{CaseID: id, Activity: a, Timestamp: int64(i+1) * 1e9})
	}
	return tr
}

func TestAnalyze(t *testing.T) {
	log := model.NewLog([]model.Trace{
		trace("1", "regular", "a", "b", "c"),
		trace("2", "deviant", "a", "c"),
		trace("3", "regular", "a", "b", "c"),
		trace("4", "", "a"),
	})

	r := Analyze(log, "", 2, 3)

	if r.Traces != 4 || r.Events != 9 || r.Activities != 3 || r.Variants != 3 {
		t.Errorf("counts = %d traces, %d events, %d activities, %d variants",
			r.Traces, r.Events, r.Activities, r.Variants)
	}
	want := LengthMetrics{Min: 1, Max: 3, Mean: 2.25, Median: 3}
	if r.Lengths != want {
		t.Errorf("Lengths = %+v, want %+v", r.Lengths, want)
	}
	if r.TopActivities[0] != (Count{Value: "a", Count: 4}) {
		t.Errorf("TopActivities[0] = %+v", r.TopActivities[0])
	}
	if len(r.Labels) != 2 || r.Labels[0] != (Count{Value: "regular", Count: 2}) {
		t.Errorf("Labels = %+v", r.Labels)
	}

	prefixes := []PrefixSupport{
		{Length: 2, Full: 3, Padded: 1, Share: 0.75},
		{Length: 3, Full: 2, Padded: 2, Share: 0.5},
	}
	for i, p := range prefixes {
		if r.Prefixes[i] != p {
			t.Errorf("Prefixes[%d] = %+v, want %+v", i, r.Prefixes[i], p)
		}
	}

	if len(r.Issues) != 1 || r.Issues[0].Category != "labels" || r.Issues[0].Affected != 1 {
		t.Errorf("Issues = %+v, want one unlabeled trace", r.Issues)
	}
}

func TestAnalyze_Warnings(t *testing.T) {
	log := model.NewLog([]model.Trace{
		trace("1", "regular", "a"),
		trace("2", "regular", "a", "b"),
	})
	r := Analyze(log, "label", 5)

	var single, padded bool
	for _, w := range r.Warnings {
		single = single || strings.Contains(w, "Only one outcome label")
		padded = padded || strings.Contains(w, "Prefix length 5 pads 100.0%")
	}
	if !single || !padded {
		t.Errorf("Warnings = %q", r.Warnings)
	}
}

func TestAnalyzer_OutOfOrder(t *testing.T) {
	tr := trace("1", "regular", "a", "b")
	tr.Events[1].Timestamp = 1
	a := NewAnalyzer("label")
	a.Add(&tr)
	r := a.Report()
	if len(r.Issues) != 1 || r.Issues[0].Category != "consistency" {
		t.Errorf("Issues = %+v, want out-of-order timestamp", r.Issues)
	}
	if _, err := r.ToJSON(); err != nil {
		t.Errorf("ToJSON() error = %v", err)
	}
}
