// Package conformance decides whether traces conform to an LTLf model by
// walking them through its automaton.
package conformance

import (
	"fmt"
	"strings"

	"github.com/logflow/conformflow/pkg/automaton"
	"github.com/logflow/conformflow/pkg/ltlf"
)

// Verdict is the outcome of running one label sequence.
type Verdict struct {
	Accepted bool

	// FinalState is the last state reached. Empty for acceptors without
	// explicit states.
	FinalState automaton.State

	// Consumed is the number of labels read before stopping.
	Consumed int

	// Stuck is set when a label had no transition.
	Stuck bool
}

// Acceptor decides label sequences. Implementations must be safe for
// concurrent use and depend only on the labels they are given.
type Acceptor interface {
	Run(labels []string) Verdict
}

// AcceptanceMode selects when a walk counts as accepted.
type AcceptanceMode uint8

const (
	// AcceptAtEnd accepts when the state after the last label is accepting.
	AcceptAtEnd AcceptanceMode = iota

	// AcceptOnVisit accepts as soon as an accepting state is entered, or
	// when the initial state itself is accepting.
	AcceptOnVisit
)

// String returns the mode name.
func (m AcceptanceMode) String() string {
	switch m {
	case AcceptAtEnd:
		return "end"
	case AcceptOnVisit:
		return "visit"
	default:
		return "unknown"
	}
}

// ParseAcceptanceMode parses "end" or "visit". The empty string is end.
func ParseAcceptanceMode(s string) (AcceptanceMode, error) {
	switch strings.ToLower(s) {
	case "", "end", "at_end":
		return AcceptAtEnd, nil
	case "visit", "on_visit":
		return AcceptOnVisit, nil
	default:
		return AcceptAtEnd, fmt.Errorf("conformance: unknown acceptance mode %q", s)
	}
}

// Walker runs label sequences through a DFA.
type Walker struct {
	dfa  *automaton.DFA
	mode AcceptanceMode
}

// NewWalker returns an acceptor backed by d.
func NewWalker(d *automaton.DFA, mode AcceptanceMode) *Walker {
	return &Walker{dfa: d, mode: mode}
}

// DFA returns the underlying automaton.
func (w *Walker) DFA() *automaton.DFA { return w.dfa }

// Run walks labels from the initial state. A label without a transition
// rejects at once and nothing after it is read, in either mode.
func (w *Walker) Run(labels []string) Verdict {
	state := w.dfa.Initial()
	if w.mode == AcceptOnVisit && w.dfa.IsAccepting(state) {
		return Verdict{Accepted: true, FinalState: state}
	}

	for i, label := range labels {
		next, ok := w.dfa.Step(state, label)
		if !ok {
			return Verdict{FinalState: state, Consumed: i, Stuck: true}
		}
		state = next
		if w.mode == AcceptOnVisit && w.dfa.IsAccepting(state) {
			return Verdict{Accepted: true, FinalState: state, Consumed: i + 1}
		}
	}

	return Verdict{
		Accepted:   w.dfa.IsAccepting(state),
		FinalState: state,
		Consumed:   len(labels),
	}
}

// FormulaAcceptor evaluates an LTLf formula directly on each trace. It
// stands in for an automaton when none was compiled.
type FormulaAcceptor struct {
	formula *ltlf.Formula
}

// NewFormulaAcceptor returns an acceptor for f.
func NewFormulaAcceptor(f *ltlf.Formula) *FormulaAcceptor {
	return &FormulaAcceptor{formula: f}
}

// Formula returns the evaluated formula.
func (a *FormulaAcceptor) Formula() *ltlf.Formula { return a.formula }

// Run evaluates the formula over the whole trace.
func (a *FormulaAcceptor) Run(labels []string) Verdict {
	return Verdict{
		Accepted: ltlf.Eval(a.formula, labels),
		Consumed: len(labels),
	}
}
