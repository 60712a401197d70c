package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/experiment"
	"github.com/logflow/conformflow/pkg/explain"
	"github.com/logflow/conformflow/pkg/inspect"
	"github.com/logflow/conformflow/pkg/telemetry"
	"github.com/logflow/conformflow/pkg/writer"
)

func TestPrintConformanceSummary(t *testing.T) {
	rs := conformance.NewResultSet([]conformance.Result{
		{CaseID: "c2", Accepted: false},
		{CaseID: "c1", Accepted: true},
		{CaseID: "c3", Accepted: false},
	})
	var buf bytes.Buffer
	PrintConformanceSummary(&buf, ConformanceSummary{
		LogPath:  "/data/log.xes",
		Source:   "formula",
		Mode:     conformance.AcceptAtEnd,
		Results:  rs,
		Output:   "out.parquet",
		Duration: 1500 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{"log.xes", "formula", "1 / 3", "33.3%", "1.5s", "out.parquet", "c2, c3"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRunReport(t *testing.T) {
	run := experiment.Run{
		Dataset:      "synthetic_data",
		PrefixLength: 7,
		Tier:         experiment.Tier{Name: "10%"},
		Search:       explain.Search{Method: explain.Neighbour, Heuristic: explain.Online, Adapted: true},
	}

	var buf bytes.Buffer
	PrintRunReport(&buf, experiment.Report{Run: run, Skipped: true})
	if !strings.Contains(buf.String(), "skipped") {
		t.Errorf("skipped report = %q", buf.String())
	}

	buf.Reset()
	PrintRunReport(&buf, experiment.Report{
		Run: run, Cases: 10, Accepted: 8, Queries: 3,
		Explanation: explain.Summary{Counterfactuals: 6, Conformant: 6, MeanDistance: 1.5},
	})
	out := buf.String()
	for _, want := range []string{run.Key(), "conform 8/10", "cfs 6", "1.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q: %s", want, out)
		}
	}
}

func TestPrintPlanAndError(t *testing.T) {
	runs, err := experiment.Plan(experiment.Matrix{
		Datasets: []string{"synthetic_data"},
		Prefixes: map[string][]int{"synthetic_data": {7}},
		Tiers:    []string{"10%"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	PrintPlan(&buf, runs)
	if got := strings.Count(buf.String(), "synthetic_data/7/10%/"); got != len(runs) {
		t.Errorf("PrintPlan() listed %d runs, want %d", got, len(runs))
	}

	buf.Reset()
	PrintError(&buf, errors.New("boom"))
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("PrintError() = %q", buf.String())
	}
}

func TestFormatters(t *testing.T) {
	durations := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{125 * time.Second, "2m5s"},
	}
	for _, tt := range durations {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}

	numbers := []struct {
		n    int64
		want string
	}{
		{999, "999"},
		{1500, "1.5K"},
		{2500000, "2.5M"},
	}
	for _, tt := range numbers {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestCheckProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := CheckProgress(&buf, "checking")
	for i := 1; i <= 5; i++ {
		progress(i, 5)
	}
}

func TestPrintTotals(t *testing.T) {
	var buf bytes.Buffer
	PrintRunTotals(&buf, telemetry.Summary{Runs: 4, Skipped: 1, Counterfactuals: 12, P50: 2 * time.Second, P95: 3 * time.Second})
	for _, want := range []string{"4 (1 skipped, 0 failed)", "12", "p50 2.0s"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("totals missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	PrintSinkSummary(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("PrintSinkSummary(nil) wrote %q", buf.String())
	}
	PrintSinkSummary(&buf, []writer.RunSummary{{RunID: "ds/7/10%", Cases: 4, Accepted: 3, Rate: 0.75}})
	if !strings.Contains(buf.String(), "3/4 accepted (75.0%)") {
		t.Errorf("PrintSinkSummary() = %q", buf.String())
	}
}

func TestPrintLogProfile(t *testing.T) {
	r := &inspect.Report{
		Traces:   4,
		Events:   9,
		Variants: 3,
		Lengths:  inspect.LengthMetrics{Min: 1, Max: 3, Mean: 2.25, Median: 3},
		Labels:   []inspect.Count{{Value: "regular", Count: 3}, {Value: "deviant", Count: 1}},
		Prefixes: []inspect.PrefixSupport{{Length: 3, Full: 2, Padded: 2, Share: 0.5}},
		Issues:   []inspect.Issue{{Description: "Traces without events", Affected: 1}},
	}
	var buf bytes.Buffer
	PrintLogProfile(&buf, "/data/claims.xes", r)
	out := buf.String()
	for _, want := range []string{"LOG PROFILE", "claims.xes", "median 3", "75.0%", "2 full, 2 padded", "Traces without events (1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
