package automaton

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func singleStep(t *testing.T) *DFA {
	t.Helper()
	b := NewBuilder().AddState("S0", "S1").SetInitial("S0").Accept("S1")
	if err := b.AddTransition("S0", "a", "S1"); err != nil {
		t.Fatal(err)
	}
	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return d
}

func TestStep(t *testing.T) {
	d := singleStep(t)
	if s, ok := d.Step("S0", "a"); !ok || s != "S1" {
		t.Errorf("Step(S0, a) = %q, %v, want S1, true", s, ok)
	}
	if _, ok := d.Step("S0", "b"); ok {
		t.Error("Step(S0, b) found a transition, want none")
	}
	if _, ok := d.Step("S1", "a"); ok {
		t.Error("Step(S1, a) found a transition, want none")
	}
	if !d.IsAccepting("S1") || d.IsAccepting("S0") {
		t.Error("accepting set mismatch")
	}
}

func TestBuilder_Nondeterministic(t *testing.T) {
	b := NewBuilder().AddState("q0", "q1", "q2").SetInitial("q0")
	if err := b.AddTransition("q0", "a", "q1"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddTransition("q0", "a", "q1"); err != nil {
		t.Errorf("repeated identical transition error = %v, want nil", err)
	}
	if err := b.AddTransition("q0", "a", "q2"); !errors.Is(err, ErrNondeterministic) {
		t.Errorf("AddTransition() error = %v, want %v", err, ErrNondeterministic)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		field string
	}{
		{
			name:  "no initial",
			build: func() *Builder { return NewBuilder().AddState("q0") },
			field: "initial",
		},
		{
			name:  "undeclared initial",
			build: func() *Builder { return NewBuilder().AddState("q0").SetInitial("q9") },
			field: "initial",
		},
		{
			name:  "undeclared accepting",
			build: func() *Builder { return NewBuilder().AddState("q0").SetInitial("q0").Accept("q1") },
			field: "accepting",
		},
		{
			name: "dangling target",
			build: func() *Builder {
				b := NewBuilder().AddState("q0").SetInitial("q0")
				_ = b.AddTransition("q0", "a", "q1")
				return b
			},
			field: "transition",
		},
		{
			name: "dangling source",
			build: func() *Builder {
				b := NewBuilder().AddState("q0").SetInitial("q0")
				_ = b.AddTransition("qx", "a", "q0")
				return b
			},
			field: "transition",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Build() error = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", ce.Field, tt.field)
			}
			if !errors.Is(err, ErrMalformedAutomaton) {
				t.Error("error does not wrap ErrMalformedAutomaton")
			}
		})
	}
}

const sampleYAML = `formula: "a"
initial: S0
states: [S0, S1]
accepting: [S1]
transitions:
  - {from: S0, label: a, to: S1}
`

func TestParseYAML_RoundTrip(t *testing.T) {
	d, err := ParseYAML(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if d.Formula() != "a" || d.Initial() != "S0" {
		t.Errorf("formula/initial = %q/%q", d.Formula(), d.Initial())
	}

	var buf bytes.Buffer
	if err := EncodeYAML(&buf, d); err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	again, err := ParseYAML(&buf)
	if err != nil {
		t.Fatalf("ParseYAML(encoded) error = %v", err)
	}
	if !reflect.DeepEqual(again.Transitions(), d.Transitions()) {
		t.Errorf("Transitions() = %v, want %v", again.Transitions(), d.Transitions())
	}
	if !reflect.DeepEqual(again.Accepting(), d.Accepting()) {
		t.Errorf("Accepting() = %v, want %v", again.Accepting(), d.Accepting())
	}
}

func TestParseYAML_Malformed(t *testing.T) {
	input := "initial: S0\nstates: [S1]\n"
	if _, err := ParseYAML(strings.NewReader(input)); !errors.Is(err, ErrMalformedAutomaton) {
		t.Errorf("ParseYAML() error = %v, want %v", err, ErrMalformedAutomaton)
	}
	if _, err := ParseYAML(strings.NewReader("")); !errors.Is(err, ErrMalformedAutomaton) {
		t.Errorf("ParseYAML(empty) error = %v, want %v", err, ErrMalformedAutomaton)
	}
}

// monaDOT is ltlf2dfa output for F(b) over propositions a, b.
const monaDOT = `digraph MONA_DFA {
 rankdir = LR;
 center = true;
 size = "7.5,10.5";
 edge [fontname = Courier];
 node [height = .5, width = .5];
 node [shape = doublecircle]; 2;
 node [shape = circle]; 1;
 init [shape = plaintext, label = ""];
 init -> 1;
 1 -> 1 [label="~b"];
 1 -> 2 [label="b"];
 2 -> 2 [label="true"];
}
`

func TestParseDOT(t *testing.T) {
	d, err := ParseDOT(strings.NewReader(monaDOT), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ParseDOT() error = %v", err)
	}
	if d.Initial() != "1" {
		t.Errorf("Initial() = %q, want 1", d.Initial())
	}
	if !reflect.DeepEqual(d.Accepting(), []State{"2"}) {
		t.Errorf("Accepting() = %v, want [2]", d.Accepting())
	}

	tests := []struct {
		from  State
		label string
		to    State
	}{
		{"1", "a", "1"},
		{"1", "c", "1"},
		{"1", "b", "2"},
		{"2", "a", "2"},
		{"2", "b", "2"},
	}
	for _, tt := range tests {
		if got, ok := d.Step(tt.from, tt.label); !ok || got != tt.to {
			t.Errorf("Step(%q, %q) = %q, %v, want %q", tt.from, tt.label, got, ok, tt.to)
		}
	}
	if _, ok := d.Step("1", "zzz"); ok {
		t.Error("label outside the alphabet got a transition")
	}
}

func TestParseDOT_GuardAtomsAsAlphabet(t *testing.T) {
	d, err := ParseDOT(strings.NewReader(monaDOT), nil)
	if err != nil {
		t.Fatalf("ParseDOT() error = %v", err)
	}
	if got := d.Alphabet(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Alphabet() = %v, want [b]", got)
	}
}

func TestParseDOT_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no init", "digraph G { 1; 1 -> 1 [label=\"true\"]; }"},
		{"bad guard", "digraph G { init -> 1; 1 -> 1 [label=\"a &\"]; }"},
		{"temporal guard", "digraph G { init -> 1; 1 -> 1 [label=\"X(a)\"]; }"},
		{"unterminated", "digraph G { init -> 1; 1 -> 1 [label=\"a]; }"},
		{"overlapping guards", "digraph G { init -> 1; 2; 1 -> 1 [label=\"a\"]; 1 -> 2 [label=\"true\"]; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDOT(strings.NewReader(tt.input), []string{"a"})
			if err == nil {
				t.Fatal("ParseDOT() error = nil, want error")
			}
		})
	}
}

func TestWriteDOT_RoundTrip(t *testing.T) {
	d, err := ParseDOT(strings.NewReader(monaDOT), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteDOT(&buf, d); err != nil {
		t.Fatalf("WriteDOT() error = %v", err)
	}
	again, err := ParseDOT(&buf, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ParseDOT(written) error = %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(again.Transitions(), d.Transitions()) {
		t.Errorf("Transitions() = %v, want %v", again.Transitions(), d.Transitions())
	}
	if !reflect.DeepEqual(again.Accepting(), d.Accepting()) {
		t.Errorf("Accepting() = %v, want %v", again.Accepting(), d.Accepting())
	}
}

func TestWriteDOT_KeywordLabels(t *testing.T) {
	b := NewBuilder().AddState("S0", "S1").SetInitial("S0").Accept("S1")
	for _, label := range []string{"end", "last", "a"} {
		if err := b.AddTransition("S0", label, "S1"); err != nil {
			t.Fatal(err)
		}
	}
	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteDOT(&buf, d); err != nil {
		t.Fatalf("WriteDOT() error = %v", err)
	}
	again, err := ParseDOT(&buf, []string{"a", "end", "last", "other"})
	if err != nil {
		t.Fatalf("ParseDOT(written) error = %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(again.Transitions(), d.Transitions()) {
		t.Errorf("Transitions() = %v, want %v", again.Transitions(), d.Transitions())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "10%.yaml")
	if err := os.WriteFile(yamlPath, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Find(filepath.Join(dir, "10%")); got != yamlPath {
		t.Errorf("Find() = %q, want %q", got, yamlPath)
	}
	if got := Find(filepath.Join(dir, "25%")); got != "" {
		t.Errorf("Find(missing) = %q, want empty", got)
	}
	d, err := Load(yamlPath, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Initial() != "S0" {
		t.Errorf("Initial() = %q, want S0", d.Initial())
	}
	if _, err := Load(filepath.Join(dir, "x.txt"), nil); err == nil {
		t.Error("Load(.txt) error = nil, want error")
	}
}
