package conformance

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/logflow/conformflow/internal/model"
	"github.com/logflow/conformflow/pkg/automaton"
	"github.com/logflow/conformflow/pkg/ltlf"
)

// singleStep accepts exactly the trace [a].
func singleStep(t *testing.T) *automaton.DFA {
	t.Helper()
	b := automaton.NewBuilder().AddState("S0", "S1").SetInitial("S0").Accept("S1")
	if err := b.AddTransition("S0", "a", "S1"); err != nil {
		t.Fatal(err)
	}
	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func trace(id string, labels ...string) model.Trace {
	tr := model.Trace{CaseID: id}
	for _, l := range labels {
		tr.Events = append(tr.Events, model.Event{CaseID: id, Activity: l})
	}
	return tr
}

func TestWalker_SingleStep(t *testing.T) {
	w := NewWalker(singleStep(t), AcceptAtEnd)
	tests := []struct {
		labels   []string
		accepted bool
		final    automaton.State
		consumed int
		stuck    bool
	}{
		{[]string{"a"}, true, "S1", 1, false},
		{[]string{"b"}, false, "S0", 0, true},
		{nil, false, "S0", 0, false},
		{[]string{"a", "a"}, false, "S1", 1, true},
	}
	for _, tt := range tests {
		got := w.Run(tt.labels)
		want := Verdict{Accepted: tt.accepted, FinalState: tt.final, Consumed: tt.consumed, Stuck: tt.stuck}
		if got != want {
			t.Errorf("Run(%v) = %+v, want %+v", tt.labels, got, want)
		}
	}
}

func TestWalker_EmptyTraceAcceptingInitial(t *testing.T) {
	d, err := automaton.NewBuilder().AddState("q0").SetInitial("q0").Accept("q0").Build()
	if err != nil {
		t.Fatal(err)
	}
	for _, mode := range []AcceptanceMode{AcceptAtEnd, AcceptOnVisit} {
		if v := NewWalker(d, mode).Run(nil); !v.Accepted {
			t.Errorf("mode %v: empty trace rejected, want accepted", mode)
		}
	}
}

func TestWalker_StopsAtMissingTransition(t *testing.T) {
	b := automaton.NewBuilder().AddState("q0", "q1").SetInitial("q0").Accept("q1")
	_ = b.AddTransition("q0", "a", "q0")
	_ = b.AddTransition("q0", "b", "q1")
	_ = b.AddTransition("q1", "b", "q1")
	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	v := NewWalker(d, AcceptAtEnd).Run([]string{"a", "a", "x", "b"})
	if v.Accepted || !v.Stuck || v.Consumed != 2 || v.FinalState != "q0" {
		t.Errorf("Run() = %+v, want stuck after 2 labels in q0", v)
	}
}

func TestWalker_AcceptOnVisit(t *testing.T) {
	b := automaton.NewBuilder().AddState("q0", "q1", "q2").SetInitial("q0").Accept("q1")
	_ = b.AddTransition("q0", "a", "q1")
	_ = b.AddTransition("q1", "b", "q2")
	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	labels := []string{"a", "b"}
	if v := NewWalker(d, AcceptAtEnd).Run(labels); v.Accepted {
		t.Errorf("AcceptAtEnd Run(%v) = %+v, want rejected", labels, v)
	}
	if v := NewWalker(d, AcceptOnVisit).Run(labels); !v.Accepted || v.Consumed != 1 {
		t.Errorf("AcceptOnVisit Run(%v) = %+v, want accepted after 1", labels, v)
	}
	// a missing transition before reaching an accepting state still rejects
	if v := NewWalker(d, AcceptOnVisit).Run([]string{"b", "a"}); v.Accepted {
		t.Errorf("AcceptOnVisit Run([b a]) = %+v, want rejected", v)
	}
}

func TestParseAcceptanceMode(t *testing.T) {
	tests := []struct {
		input    string
		expected AcceptanceMode
		wantErr  bool
	}{
		{"", AcceptAtEnd, false},
		{"end", AcceptAtEnd, false},
		{"VISIT", AcceptOnVisit, false},
		{"sometimes", AcceptAtEnd, true},
	}
	for _, tt := range tests {
		got, err := ParseAcceptanceMode(tt.input)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseAcceptanceMode(%q) = %v, %v, want %v, err=%v", tt.input, got, err, tt.expected, tt.wantErr)
		}
	}
}

func TestFormulaAcceptor(t *testing.T) {
	acc := NewFormulaAcceptor(ltlf.MustParse("a & X(b)"))
	if v := acc.Run([]string{"a", "b"}); !v.Accepted {
		t.Errorf("Run([a b]) = %+v, want accepted", v)
	}
	if v := acc.Run([]string{"a"}); v.Accepted {
		t.Errorf("Run([a]) = %+v, want rejected", v)
	}
}

func TestCheckLog_EndToEnd(t *testing.T) {
	log := model.NewLog([]model.Trace{
		trace("c1", "a"),
		trace("c2", "b"),
		trace("c3"),
		trace("c4", "a", "a"),
	})

	rs, err := CheckLog(context.Background(), log, NewWalker(singleStep(t), AcceptAtEnd), Options{Jobs: 2, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("CheckLog() error = %v", err)
	}
	if got := rs.Accepted(); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Errorf("Accepted() = %v, want [c1]", got)
	}
	if got := rs.Rejected(); !reflect.DeepEqual(got, []string{"c2", "c3", "c4"}) {
		t.Errorf("Rejected() = %v, want [c2 c3 c4]", got)
	}
	if rs.Rate() != 0.25 {
		t.Errorf("Rate() = %v, want 0.25", rs.Rate())
	}
	if r, ok := rs.Lookup("c4"); !ok || r.Consumed != 1 || r.FinalState != "S1" {
		t.Errorf("Lookup(c4) = %+v, %v", r, ok)
	}
	if got := rs.Filter([]string{"c9", "c4", "c1"}); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Errorf("Filter() = %v, want [c1]", got)
	}
}

func TestCheckLog_OrderAndDeterminism(t *testing.T) {
	b := automaton.NewBuilder().AddState("even", "odd").SetInitial("even").Accept("even")
	_ = b.AddTransition("even", "x", "odd")
	_ = b.AddTransition("odd", "x", "even")
	d, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	var traces []model.Trace
	for i := 0; i < 500; i++ {
		labels := make([]string, i%9)
		for j := range labels {
			labels[j] = "x"
		}
		traces = append(traces, trace(fmt.Sprintf("case-%03d", i), labels...))
	}
	log := model.NewLog(traces)
	acc := NewWalker(d, AcceptAtEnd)

	var calls atomic.Int64
	first, err := CheckLog(context.Background(), log, acc, Options{Jobs: 8, Progress: func(done, total int) {
		calls.Add(1)
	}})
	if err != nil {
		t.Fatalf("CheckLog() error = %v", err)
	}
	if calls.Load() != 500 {
		t.Errorf("progress calls = %d, want 500", calls.Load())
	}
	for i, r := range first.Results() {
		if r.CaseID != traces[i].CaseID {
			t.Fatalf("result %d is %q, want %q", i, r.CaseID, traces[i].CaseID)
		}
		if want := (i%9)%2 == 0; r.Accepted != want {
			t.Errorf("%s accepted = %v, want %v", r.CaseID, r.Accepted, want)
		}
	}

	second, err := CheckLog(context.Background(), log, acc, Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Results(), second.Results()) {
		t.Error("results differ between runs with different worker counts")
	}
}

func TestCheckLog_SameLabelsSameVerdict(t *testing.T) {
	log := model.NewLog([]model.Trace{trace("x", "a"), trace("y", "a")})
	rs, err := CheckLog(context.Background(), log, NewWalker(singleStep(t), AcceptAtEnd), Options{})
	if err != nil {
		t.Fatal(err)
	}
	x, _ := rs.Lookup("x")
	y, _ := rs.Lookup("y")
	if x.Accepted != y.Accepted || x.FinalState != y.FinalState || x.Consumed != y.Consumed {
		t.Errorf("x = %+v, y = %+v, want identical verdicts", x, y)
	}
}

func TestCheckLog_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := model.NewLog([]model.Trace{trace("c1", "a")})
	_, err := CheckLog(ctx, log, NewWalker(singleStep(t), AcceptAtEnd), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("CheckLog() error = %v, want context.Canceled", err)
	}
}

func TestResultSet_Empty(t *testing.T) {
	rs := NewResultSet(nil)
	if rs.Rate() != 0 || rs.Len() != 0 || len(rs.Accepted()) != 0 {
		t.Error("empty result set is not empty")
	}
}
