package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/logflow/conformflow/pkg/checkpoint"
	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/encoding"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/explain"
	"github.com/logflow/conformflow/pkg/ltlf"
)

func validSettings() Settings {
	s := DefaultSettings()
	s.DataPath = "data/full.xes"
	s.PrefixLength = 7
	return s
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(validSettings())
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if cfg.Split != (Split{0.7, 0.15, 0.15}) {
		t.Errorf("Split = %+v", cfg.Split)
	}
	if cfg.Acceptance != conformance.AcceptAtEnd || cfg.Explainer != explain.Neighbour {
		t.Errorf("Acceptance, Explainer = %v, %v", cfg.Acceptance, cfg.Explainer)
	}
}

func TestNewConfig_SplitMismatch(t *testing.T) {
	tests := [][]float64{
		{0.7, 0.2, 0.15},
		{0.5, 0.5},
		{0.6, 0.2, 0.1},
	}
	for _, split := range tests {
		s := validSettings()
		s.Split = split
		s.Model = "xgboost" // the split check must win
		_, err := NewConfig(s)
		if !errors.Is(err, ErrSplitMismatch) {
			t.Errorf("NewConfig(split %v) error = %v, want %v", split, err, ErrSplitMismatch)
		}
		if !cferrors.IsCode(err, cferrors.CodeSplitMismatch) || !cferrors.IsFatal(err) {
			t.Errorf("NewConfig(split %v) code = %s, want fatal %s", split, cferrors.GetCode(err), cferrors.CodeSplitMismatch)
		}
	}
}

func TestNewConfig_InvalidEnum(t *testing.T) {
	s := validSettings()
	s.Model = "xgboost"
	s.Acceptance = "sometimes"
	_, err := NewConfig(s)
	if err == nil {
		t.Fatal("NewConfig() succeeded, want error")
	}
	if !cferrors.IsCode(err, cferrors.CodeInvalidEnum) {
		t.Errorf("code = %s, want %s", cferrors.GetCode(err), cferrors.CodeInvalidEnum)
	}
	var multi *cferrors.MultiError
	if !errors.As(err, &multi) || len(multi.Errors) != 2 {
		t.Errorf("error = %v, want two field errors", err)
	}

	s = validSettings()
	s.PrefixLength = 0
	if _, err := NewConfig(s); err == nil {
		t.Error("NewConfig(prefix 0) succeeded, want error")
	}
}

func TestTiers(t *testing.T) {
	for _, d := range Datasets() {
		tiers, err := Tiers(d.Name)
		if err != nil {
			t.Fatalf("Tiers(%s) error = %v", d.Name, err)
		}
		if len(tiers) != 3 {
			t.Errorf("Tiers(%s) = %d tiers, want 3", d.Name, len(tiers))
		}
		for _, tier := range tiers {
			if _, err := ltlf.Parse(tier.Formula); err != nil {
				t.Errorf("%s %s: Parse() error = %v", d.Name, tier.Name, err)
			}
		}
	}

	if _, err := Tiers("bpic2012_O_DECLINED-COMPLETE"); err != nil {
		t.Errorf("Tiers(bpic2012 variant) error = %v", err)
	}
	_, err := Tiers("sepsis")
	if !errors.Is(err, ErrUnknownDataset) || !cferrors.IsCode(err, cferrors.CodeUnknownDataset) {
		t.Errorf("Tiers(sepsis) error = %v, want %v", err, ErrUnknownDataset)
	}
}

func TestDatasets_ReturnsCopies(t *testing.T) {
	ds := Datasets()
	ds[0].PrefixLengths[0] = 99
	ds[0].Tiers[0].Formula = "false"

	tiers, _ := Tiers(ds[0].Name)
	tiers[1].Name = "edited"
	d, _ := LookupDataset("synthetic_data")
	d.PrefixLengths[1] = 98

	fresh := Datasets()[0]
	if fresh.PrefixLengths[0] != 7 || fresh.PrefixLengths[1] != 9 {
		t.Errorf("PrefixLengths = %v, want [7 9 11 13]", fresh.PrefixLengths)
	}
	if fresh.Tiers[0].Formula == "false" || fresh.Tiers[1].Name != "25%" {
		t.Errorf("Tiers = %+v, want the published tiers", fresh.Tiers)
	}
}

func TestBPIC2012HalfTier_TopLevelDisjunction(t *testing.T) {
	tiers, _ := Tiers("bpic2012_O_ACCEPTED-COMPLETE")
	f := ltlf.MustParse(tiers[2].Formula)
	if f.Op != ltlf.OpOr {
		t.Errorf("top operator = %v, want %v", f.Op, ltlf.OpOr)
	}
}

func TestPlan(t *testing.T) {
	runs, err := Plan(Matrix{})
	if err != nil {
		t.Fatal(err)
	}
	// 3 datasets × 4 prefixes × 3 tiers × (1 + 3) searches
	if len(runs) != 144 {
		t.Errorf("Plan() = %d runs, want 144", len(runs))
	}
	seen := make(map[string]bool)
	for _, r := range runs {
		if seen[r.ID()] {
			t.Fatalf("duplicate run %s", r.Key())
		}
		seen[r.ID()] = true
	}
	first := runs[0]
	if first.Key() != "synthetic_data/7/10%/baseline_heuristic_1_false" {
		t.Errorf("first run = %s", first.Key())
	}
	if runs[3].Search.Heuristic != explain.MutateAndRetry || !runs[3].Search.Adapted {
		t.Errorf("runs[3] = %s, want adapted mar", runs[3].Key())
	}

	runs, err = Plan(Matrix{
		Datasets: []string{"BPIC17_O_ACCEPTED"},
		Prefixes: map[string][]int{"BPIC17_O_ACCEPTED": {15}},
		Tiers:    []string{"50%"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 4 || runs[0].Tier.Name != "50%" {
		t.Errorf("Plan(filtered) = %d runs", len(runs))
	}

	if _, err := Plan(Matrix{Datasets: []string{"nope"}}); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("Plan(unknown) error = %v, want %v", err, ErrUnknownDataset)
	}
}

func TestLoadAcceptor(t *testing.T) {
	f := ltlf.MustParse("F(a)")
	dir := t.TempDir()

	acc, src, err := LoadAcceptor(dir, "ds", "10%", f, []string{"a", "b"}, conformance.AcceptAtEnd)
	if err != nil || src != FormulaSource {
		t.Fatalf("LoadAcceptor(no file) = %v, %v", src, err)
	}
	if !acc.Run([]string{"b", "a"}).Accepted {
		t.Error("formula acceptor rejected [b a]")
	}

	doc := "initial: s0\nstates: [s0, s1]\naccepting: [s1]\ntransitions:\n" +
		"  - {from: s0, label: a, to: s1}\n  - {from: s1, label: a, to: s1}\n"
	os.MkdirAll(filepath.Join(dir, "ds"), 0o755)
	path := filepath.Join(dir, "ds", "10%.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	acc, src, err = LoadAcceptor(dir, "ds", "10%", f, []string{"a", "b"}, conformance.AcceptAtEnd)
	if err != nil || src != path {
		t.Fatalf("LoadAcceptor(file) = %v, %v", src, err)
	}
	if acc.Run([]string{"b", "a"}).Accepted {
		t.Error("walker accepted [b a], want missing transition to reject")
	}
}

// fEventuallyA is the ltlf2dfa output for F(a).
const fEventuallyA = `digraph MONA_DFA {
 node [shape = doublecircle]; 2;
 node [shape = circle]; 1;
 init [shape = plaintext, label = ""];
 init -> 1;
 1 -> 1 [label="~a"];
 1 -> 2 [label="a"];
 2 -> 2 [label="true"];
}
`

func TestLoadAcceptor_DOTMatchesFormula(t *testing.T) {
	f := ltlf.MustParse("F(a)")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "ds"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "ds", "25%.dot")
	if err := os.WriteFile(path, []byte(fEventuallyA), 0o644); err != nil {
		t.Fatal(err)
	}

	// The population alphabet holds activities the formula never names.
	acc, src, err := LoadAcceptor(dir, "ds", "25%", f, []string{"a", "b", "c"}, conformance.AcceptAtEnd)
	if err != nil || src != path {
		t.Fatalf("LoadAcceptor(dot) = %v, %v", src, err)
	}
	traces := [][]string{
		{"b", "a"},
		{"a", encoding.PadActivity},
		{"c", encoding.PadActivity, encoding.PadActivity},
		{"b", "c"},
		{},
	}
	for _, tr := range traces {
		got := acc.Run(tr)
		if want := ltlf.Eval(f, tr); got.Accepted != want {
			t.Errorf("Run(%v) = %+v, want accepted %v", tr, got, want)
		}
		if got.Stuck {
			t.Errorf("Run(%v) got stuck", tr)
		}
	}
}

func TestLoadAcceptor_MalformedAutomaton(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "ds"), 0o755)
	tests := []struct {
		file, doc string
		code      cferrors.Code
	}{
		{"10%.yaml", "initial: s0\nstates: [s0]\naccepting: [s9]\n", cferrors.CodeMalformedAutomaton},
		{"25%.dot", "digraph G { init -> 1; 1 -> 1 [label=\"a &\"]; }", cferrors.CodeAutomatonParse},
	}
	for _, tt := range tests {
		if err := os.WriteFile(filepath.Join(dir, "ds", tt.file), []byte(tt.doc), 0o644); err != nil {
			t.Fatal(err)
		}
		tier := strings.TrimSuffix(tt.file, filepath.Ext(tt.file))
		_, _, err := LoadAcceptor(dir, "ds", tier, ltlf.MustParse("F(a)"), nil, conformance.AcceptAtEnd)
		if !cferrors.IsCode(err, tt.code) {
			t.Errorf("LoadAcceptor(%s) code = %s, want %s (%v)", tt.file, cferrors.GetCode(err), tt.code, err)
		}
	}
}

// writeSyntheticLog writes n traces over the synthetic_data vocabulary.
// Every third trace is deviant and skips the hospital contact.
func writeSyntheticLog(t *testing.T, dir string, n int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<log xes.version=\"1.0\">\n")
	for i := 1; i <= n; i++ {
		label := "regular"
		acts := []string{"Register", "Contact Hospital", "Accept Claim", "Create Questionnaire"}
		if i%3 == 0 {
			label = "deviant"
			acts = []string{"Register", "High Insurance Check", "Reject Claim"}
		}
		fmt.Fprintf(&sb, "<trace>\n<string key=\"concept:name\" value=\"%d\"/>\n<string key=\"label\" value=\"%s\"/>\n", i, label)
		for j, a := range acts {
			fmt.Fprintf(&sb, "<event>\n<string key=\"concept:name\" value=\"%s\"/>\n<date key=\"time:timestamp\" value=\"2020-01-%02dT%02d:00:00.000+00:00\"/>\n</event>\n", a, 1+i%28, j)
		}
		sb.WriteString("</trace>\n")
	}
	sb.WriteString("</log>\n")

	if err := os.MkdirAll(filepath.Join(dir, "synthetic_data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "synthetic_data", "full.xes"), []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDriver_ExecuteAndResume(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	writeSyntheticLog(t, dataDir, 30)

	s := DefaultSettings()
	s.Output = filepath.Join(root, "out")
	s.Results = filepath.Join(root, "results")
	s.ModelsDir = filepath.Join(root, "models")
	s.Epochs = 2
	s.Jobs = 2

	backend, err := checkpoint.NewLocalBackend(filepath.Join(root, "checkpoints"))
	if err != nil {
		t.Fatal(err)
	}
	runs, err := Plan(Matrix{
		Datasets: []string{"synthetic_data"},
		Prefixes: map[string][]int{"synthetic_data": {3}},
		Tiers:    []string{"10%"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var seen int
	d, err := NewDriver(s, DriverOptions{
		DataDir:     dataDir,
		Logger:      zaptest.NewLogger(t),
		Checkpoints: backend,
		Resume:      true,
		OnReport:    func(Report) { seen++ },
	})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	reports, err := d.Execute(context.Background(), runs)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(reports) != len(runs) || seen != len(runs) {
		t.Fatalf("Execute() = %d reports (%d callbacks), want %d", len(reports), seen, len(runs))
	}
	for _, r := range reports {
		if r.Skipped {
			t.Errorf("%s skipped on first execution", r.Run.Key())
		}
		if r.Cases != 30 || r.AutomatonSource != FormulaSource {
			t.Errorf("%s: cases %d source %s", r.Run.Key(), r.Cases, r.AutomatonSource)
		}
		if r.Accepted > r.Cases {
			t.Errorf("%s: accepted %d > cases %d", r.Run.Key(), r.Accepted, r.Cases)
		}
		name := fmt.Sprintf("cf_synthetic_data_3_10%%_%s.csv", r.Run.Search)
		if _, err := os.Stat(filepath.Join(s.Results, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(s.Output, "synthetic_data_3.parquet")); err != nil {
		t.Errorf("prefix table: %v", err)
	}

	again, err := d.Execute(context.Background(), runs)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range again {
		if !r.Skipped {
			t.Errorf("%s re-executed on resume", r.Run.Key())
		}
	}
}

func TestNewDriver_RejectsSplit(t *testing.T) {
	s := DefaultSettings()
	s.Split = []float64{0.8, 0.15, 0.15}
	if _, err := NewDriver(s, DriverOptions{}); !errors.Is(err, ErrSplitMismatch) {
		t.Errorf("NewDriver() error = %v, want %v", err, ErrSplitMismatch)
	}
}
