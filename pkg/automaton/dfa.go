// Package automaton holds deterministic finite automata over activity
// labels, as produced by an external LTLf-to-DFA compiler or written by hand.
package automaton

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMalformedAutomaton is wrapped by every *ConfigError.
	ErrMalformedAutomaton = errors.New("automaton: malformed automaton")

	// ErrNondeterministic is returned when a (state, label) pair would get a
	// second, different successor.
	ErrNondeterministic = errors.New("automaton: nondeterministic transition")
)

// ConfigError describes a structural defect found by Validate. It is a
// configuration problem and is never worth retrying.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("automaton: malformed %s: %s", e.Field, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return ErrMalformedAutomaton
}

// State names an automaton state.
type State string

type edge struct {
	from  State
	label string
}

// Transition is a single labelled edge.
type Transition struct {
	From  State
	Label string
	To    State
}

// DFA is a partial deterministic automaton. A (state, label) pair without a
// transition has no successor. A DFA is read-only after Build and safe for
// concurrent use.
type DFA struct {
	initial   State
	states    []State
	declared  map[State]bool
	accepting map[State]bool
	delta     map[edge]State
	formula   string
}

// Initial returns the start state.
func (d *DFA) Initial() State { return d.initial }

// States returns declared states in declaration order.
func (d *DFA) States() []State {
	return append([]State(nil), d.states...)
}

// Formula returns the LTLf formula the automaton was compiled from, if known.
func (d *DFA) Formula() string { return d.formula }

// IsAccepting reports whether s is an accepting state.
func (d *DFA) IsAccepting(s State) bool { return d.accepting[s] }

// Accepting returns the accepting states in declaration order.
func (d *DFA) Accepting() []State {
	var out []State
	for _, s := range d.states {
		if d.accepting[s] {
			out = append(out, s)
		}
	}
	return out
}

// Step returns the successor of s on label.
func (d *DFA) Step(s State, label string) (State, bool) {
	next, ok := d.delta[edge{s, label}]
	return next, ok
}

// Alphabet returns the sorted labels that appear on some transition.
func (d *DFA) Alphabet() []string {
	seen := make(map[string]struct{})
	for e := range d.delta {
		seen[e.label] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Transitions returns all transitions ordered by source declaration order,
// then label.
func (d *DFA) Transitions() []Transition {
	order := make(map[State]int, len(d.states))
	for i, s := range d.states {
		order[s] = i
	}
	out := make([]Transition, 0, len(d.delta))
	for e, to := range d.delta {
		out = append(out, Transition{From: e.from, Label: e.label, To: to})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := order[out[i].From], order[out[j].From]
		if oi != oj {
			return oi < oj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Validate checks the structural invariants: an initial state is set and
// declared, every accepting state is declared and every transition joins
// declared states.
func (d *DFA) Validate() error {
	if d.initial == "" {
		return &ConfigError{Field: "initial", Detail: "no initial state"}
	}
	if !d.declared[d.initial] {
		return &ConfigError{Field: "initial", Detail: fmt.Sprintf("state %q is not declared", d.initial)}
	}
	for _, s := range sortedStates(d.accepting) {
		if !d.declared[s] {
			return &ConfigError{Field: "accepting", Detail: fmt.Sprintf("state %q is not declared", s)}
		}
	}
	for _, t := range d.Transitions() {
		if !d.declared[t.From] {
			return &ConfigError{Field: "transition", Detail: fmt.Sprintf("source %q of %q is not declared", t.From, t.Label)}
		}
		if !d.declared[t.To] {
			return &ConfigError{Field: "transition", Detail: fmt.Sprintf("target %q of %q is not declared", t.To, t.Label)}
		}
	}
	return nil
}

func sortedStates(m map[State]bool) []State {
	out := make([]State, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Builder assembles a DFA. The zero value is not usable; call NewBuilder.
type Builder struct {
	d *DFA
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{d: &DFA{
		declared:  make(map[State]bool),
		accepting: make(map[State]bool),
		delta:     make(map[edge]State),
	}}
}

// AddState declares states. Re-declaring a state is a no-op.
func (b *Builder) AddState(states ...State) *Builder {
	for _, s := range states {
		if !b.d.declared[s] {
			b.d.declared[s] = true
			b.d.states = append(b.d.states, s)
		}
	}
	return b
}

// SetInitial sets the start state.
func (b *Builder) SetInitial(s State) *Builder {
	b.d.initial = s
	return b
}

// Accept marks states as accepting.
func (b *Builder) Accept(states ...State) *Builder {
	for _, s := range states {
		b.d.accepting[s] = true
	}
	return b
}

// SetFormula records the source formula.
func (b *Builder) SetFormula(f string) *Builder {
	b.d.formula = f
	return b
}

// AddTransition adds from --label--> to. Adding the same transition twice
// is allowed; a different target for an existing pair is not.
func (b *Builder) AddTransition(from State, label string, to State) error {
	e := edge{from, label}
	if prev, ok := b.d.delta[e]; ok && prev != to {
		return fmt.Errorf("%w: %q on %q goes to both %q and %q", ErrNondeterministic, from, label, prev, to)
	}
	b.d.delta[e] = to
	return nil
}

// Build validates and returns the automaton. The builder must not be used
// afterwards.
func (b *Builder) Build() (*DFA, error) {
	d := b.d
	b.d = nil
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
