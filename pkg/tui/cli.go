// Package tui renders command output: summaries, run reports and progress.
// Plain streaming output, no full-screen interface.
package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/experiment"
	"github.com/logflow/conformflow/pkg/inspect"
	"github.com/logflow/conformflow/pkg/telemetry"
	"github.com/logflow/conformflow/pkg/writer"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

const rule = "  ─────────────────────────────────────"

// ConformanceSummary describes one check pass.
type ConformanceSummary struct {
	LogPath  string
	Source   string // automaton file or formula
	Mode     conformance.AcceptanceMode
	Results  *conformance.ResultSet
	Output   string
	Duration time.Duration
}

// PrintConformanceSummary prints the verdict counts and, when few cases
// were rejected, their IDs.
func PrintConformanceSummary(w io.Writer, s ConformanceSummary) {
	rs := s.Results
	fmt.Fprintln(w)
	if rs.Len() > 0 && rs.AcceptedCount() == rs.Len() {
		fmt.Fprintln(w, successStyle.Render("  ✓ ALL CASES CONFORM"))
	} else {
		fmt.Fprintln(w, accentStyle.Render("▸ CONFORMANCE"))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))
	field(w, "Log:", filepath.Base(s.LogPath))
	field(w, "Model:", s.Source)
	field(w, "Mode:", s.Mode.String())
	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Accepted:"),
		titleStyle.Render(fmt.Sprintf("%s / %s", formatNumber(int64(rs.AcceptedCount())), formatNumber(int64(rs.Len())))),
		mutedStyle.Render(fmt.Sprintf("(%.1f%%)", 100*rs.Rate())))
	if s.Duration > 0 {
		field(w, "Time:", formatDuration(s.Duration))
	}
	if s.Output != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(s.Output))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))

	rejected := rs.Rejected()
	if n := len(rejected); n > 0 && n <= 10 {
		sort.Strings(rejected)
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Rejected:"), strings.Join(rejected, ", "))
	}
	fmt.Fprintln(w)
}

// PrintRunReport prints one line per experiment run.
func PrintRunReport(w io.Writer, r experiment.Report) {
	if r.Skipped {
		fmt.Fprintf(w, "  %s %s %s\n", mutedStyle.Render("–"), r.Run.Key(), mutedStyle.Render("(complete, skipped)"))
		return
	}
	e := r.Explanation
	fmt.Fprintf(w, "  %s %s %s\n",
		successStyle.Render("✓"),
		titleStyle.Render(r.Run.Key()),
		mutedStyle.Render(fmt.Sprintf("auc %.3f · conform %d/%d · queries %d · cfs %d (%d conformant, mean distance %.2f) · %s",
			r.Metrics.AUC, r.Accepted, r.Cases, r.Queries,
			e.Counterfactuals, e.Conformant, e.MeanDistance, formatDuration(r.Duration))))
}

// PrintPlan prints planned runs with their checkpoint IDs.
func PrintPlan(w io.Writer, runs []experiment.Run) {
	fmt.Fprintln(w, accentStyle.Render(fmt.Sprintf("▸ %d RUNS", len(runs))))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(r.ID()), r.Key())
	}
}

// PrintError prints a failure line.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, accentStyle.Render("  ✗ "+err.Error()))
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(label), titleStyle.Render(value))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar writing to w.
func ShowProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// CheckProgress adapts a progress bar to conformance.Options.Progress.
// The bar is created on the first call, when the total is known.
func CheckProgress(w io.Writer, description string) func(done, total int) {
	var bar *progressbar.ProgressBar
	var once sync.Once
	return func(done, total int) {
		once.Do(func() { bar = ShowProgress(w, int64(total), description) })
		bar.Set(done)
	}
}

// PrintRunTotals prints aggregate run statistics.
func PrintRunTotals(w io.Writer, s telemetry.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ EXPERIMENT COMPLETE"))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	field(w, "Runs:", fmt.Sprintf("%d (%d skipped, %d failed)", s.Runs, s.Skipped, s.Failed))
	field(w, "Counterfactuals:", formatNumber(s.Counterfactuals))
	if s.P50 > 0 {
		field(w, "Run time:", fmt.Sprintf("p50 %s · p95 %s", formatDuration(s.P50), formatDuration(s.P95)))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))
}

// PrintSinkSummary prints stored conformance rates per run.
func PrintSinkSummary(w io.Writer, rows []writer.RunSummary) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(w, accentStyle.Render("▸ STORED RESULTS"))
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", titleStyle.Render(r.RunID),
			mutedStyle.Render(fmt.Sprintf("%d/%d accepted (%.1f%%)", r.Accepted, r.Cases, 100*r.Rate)))
	}
}

// PrintLogProfile prints an event log profile.
func PrintLogProfile(w io.Writer, logPath string, r *inspect.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render("▸ LOG PROFILE"))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	field(w, "Log:", filepath.Base(logPath))
	field(w, "Traces:", formatNumber(int64(r.Traces)))
	field(w, "Events:", formatNumber(int64(r.Events)))
	field(w, "Activities:", fmt.Sprintf("%d", r.Activities))
	field(w, "Variants:", fmt.Sprintf("%d", r.Variants))
	field(w, "Length:", fmt.Sprintf("min %d · median %d · mean %.1f · max %d",
		r.Lengths.Min, r.Lengths.Median, r.Lengths.Mean, r.Lengths.Max))
	if r.TimeSpan != "" {
		field(w, "Span:", fmt.Sprintf("%s → %s", r.MinTimestamp.Format("2006-01-02"), r.MaxTimestamp.Format("2006-01-02")))
	}
	for _, l := range r.Labels {
		field(w, "Label "+l.Value+":", fmt.Sprintf("%d (%.1f%%)", l.Count, 100*float64(l.Count)/float64(max(r.Traces, 1))))
	}
	for _, p := range r.Prefixes {
		field(w, fmt.Sprintf("Prefix %d:", p.Length), fmt.Sprintf("%d full, %d padded", p.Full, p.Padded))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  %s %s (%d)\n", accentStyle.Render("✗"), issue.Description, issue.Affected)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("!"), warning)
	}
	fmt.Fprintln(w)
}
