package automaton

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the hand-authored YAML layout:
//
//	formula: "F(a)"
//	initial: s0
//	states: [s0, s1]
//	accepting: [s1]
//	transitions:
//	  - {from: s0, label: a, to: s1}
type document struct {
	Formula     string           `yaml:"formula,omitempty"`
	Initial     string           `yaml:"initial"`
	States      []string         `yaml:"states"`
	Accepting   []string         `yaml:"accepting"`
	Transitions []yamlTransition `yaml:"transitions"`
}

type yamlTransition struct {
	From  string `yaml:"from"`
	Label string `yaml:"label"`
	To    string `yaml:"to"`
}

// ParseYAML reads an automaton document.
func ParseYAML(r io.Reader) (*DFA, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, &ConfigError{Field: "document", Detail: "empty"}
		}
		return nil, fmt.Errorf("decode automaton yaml: %w", err)
	}

	b := NewBuilder().SetInitial(State(doc.Initial)).SetFormula(doc.Formula)
	for _, s := range doc.States {
		b.AddState(State(s))
	}
	for _, s := range doc.Accepting {
		b.Accept(State(s))
	}
	for _, t := range doc.Transitions {
		if err := b.AddTransition(State(t.From), t.Label, State(t.To)); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// MarshalYAML implements yaml.Marshaler using the document layout ParseYAML
// reads.
func (d *DFA) MarshalYAML() (interface{}, error) {
	doc := document{
		Formula: d.formula,
		Initial: string(d.initial),
	}
	for _, s := range d.states {
		doc.States = append(doc.States, string(s))
	}
	for _, s := range d.Accepting() {
		doc.Accepting = append(doc.Accepting, string(s))
	}
	for _, t := range d.Transitions() {
		doc.Transitions = append(doc.Transitions, yamlTransition{From: string(t.From), Label: t.Label, To: string(t.To)})
	}
	return doc, nil
}

// EncodeYAML writes d as a YAML document.
func EncodeYAML(w io.Writer, d *DFA) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
