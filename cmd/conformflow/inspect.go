package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/logflow/conformflow/pkg/automaton"
	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/ltlf"
)

func (a *app) formulaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Work with LTLf formulas",
	}

	var (
		normalize bool
		trace     []string
	)
	parse := &cobra.Command{
		Use:   "parse <formula>",
		Short: "Parse a formula and print its canonical form and alphabet",
		Long: `Parse an LTLf formula, print its canonical rendering and the propositions
it mentions. With --trace the formula is also evaluated on a finite trace.

Examples:
  conformflow formula parse "G(a -> F(b))"
  conformflow formula parse --normalize "F(O_Sent) & G(X(b))"
  conformflow formula parse "F(a) & !b" --trace a,c`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if normalize {
				n, err := ltlf.Normalize(input)
				if err != nil {
					return err
				}
				input = n
			}
			f, err := ltlf.Parse(input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "canonical: %s\n", f)
			fmt.Fprintf(out, "alphabet:  %s\n", strings.Join(f.Atoms(), ", "))
			fmt.Fprintf(out, "temporal:  %t\n", f.IsTemporal())
			if cmd.Flags().Changed("trace") {
				fmt.Fprintf(out, "accepted:  %t\n", ltlf.Eval(f, trace))
			}
			return nil
		},
	}
	parse.Flags().BoolVar(&normalize, "normalize", false, "Lowercase proposition names first")
	parse.Flags().StringSliceVar(&trace, "trace", nil, "Comma-separated labels to evaluate against")

	cmd.AddCommand(parse)
	return cmd
}

func (a *app) automatonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automaton",
		Short: "Work with DFA files",
	}

	var (
		asDOT    bool
		asYAML   bool
		alphabet []string
		trace    []string
		visit    bool
	)
	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Print an automaton's states and transitions",
		Long: `Load a .dot/.gv (ltlf2dfa output) or .yaml automaton and print it. DOT guards
are expanded over --alphabet, or over the propositions they mention.

Examples:
  conformflow automaton show process_models/claims/10%.dot
  conformflow automaton show model.dot --alphabet a,b,c --yaml > model.yaml
  conformflow automaton show model.yaml --trace a,b --visit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := automaton.Load(args[0], alphabet)
			if err != nil {
				return err
			}
			if err := d.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asDOT:
				return automaton.WriteDOT(out, d)
			case asYAML:
				return automaton.EncodeYAML(out, d)
			}

			fmt.Fprintf(out, "initial:   %s\n", d.Initial())
			fmt.Fprintf(out, "states:    %s\n", joinStates(d.States()))
			fmt.Fprintf(out, "accepting: %s\n", joinStates(d.Accepting()))
			fmt.Fprintf(out, "alphabet:  %s\n", strings.Join(d.Alphabet(), ", "))
			if f := d.Formula(); f != "" {
				fmt.Fprintf(out, "formula:   %s\n", f)
			}
			fmt.Fprintln(out, "transitions:")
			for _, t := range d.Transitions() {
				fmt.Fprintf(out, "  %s --%s--> %s\n", t.From, t.Label, t.To)
			}

			if cmd.Flags().Changed("trace") {
				mode := conformance.AcceptAtEnd
				if visit {
					mode = conformance.AcceptOnVisit
				}
				v := conformance.NewWalker(d, mode).Run(trace)
				fmt.Fprintf(out, "accepted:  %t (state %s, consumed %d, stuck %t)\n",
					v.Accepted, v.FinalState, v.Consumed, v.Stuck)
			}
			return nil
		},
	}
	show.Flags().BoolVar(&asDOT, "dot", false, "Print as Graphviz DOT")
	show.Flags().BoolVar(&asYAML, "yaml", false, "Print as YAML")
	show.Flags().StringSliceVar(&alphabet, "alphabet", nil, "Labels used to expand DOT guards")
	show.Flags().StringSliceVar(&trace, "trace", nil, "Comma-separated labels to run through the automaton")
	show.Flags().BoolVar(&visit, "visit", false, "Accept on first visit to an accepting state")
	show.MarkFlagsMutuallyExclusive("dot", "yaml")

	cmd.AddCommand(show)
	return cmd
}

func joinStates(states []automaton.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
