package automaton

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/logflow/conformflow/pkg/ltlf"
)

// ErrDOTSyntax is returned for DOT input this package cannot read.
var ErrDOTSyntax = fmt.Errorf("automaton: invalid DOT: %w", ErrMalformedAutomaton)

// initNode is the invisible node MONA and ltlf2dfa use to mark the start
// state: "init -> 1;".
const initNode = "init"

type dotEdge struct {
	from, to string
	guard    *ltlf.Formula
}

// ParseDOT reads an automaton in the Graphviz form emitted by ltlf2dfa/MONA.
// Edge labels are propositional guards such as "~a & b". Each label of the
// alphabet is tried against every guard with exactly that proposition true,
// which turns the symbolic automaton into an explicit one. When alphabet is
// empty the propositions mentioned by the guards are used.
func ParseDOT(r io.Reader, alphabet []string) (*DFA, error) {
	stmts, err := dotStatements(r)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	var edges []dotEdge
	shape := ""
	initial := ""

	for _, st := range stmts {
		id, attrs := splitAttrs(st)
		switch {
		case id == "" || id == "digraph" || id == "graph" ||
			strings.HasPrefix(id, "digraph ") || strings.HasPrefix(id, "graph "):
			// header or graph attributes
		case id == "node":
			shape = attrs["shape"]
		case id == "edge":
		case strings.Contains(id, "->"):
			parts := strings.SplitN(id, "->", 2)
			from, to := unquote(strings.TrimSpace(parts[0])), unquote(strings.TrimSpace(parts[1]))
			if from == "" || to == "" {
				return nil, fmt.Errorf("%w: edge %q", ErrDOTSyntax, st)
			}
			if from == initNode {
				initial = to
				continue
			}
			label, ok := attrs["label"]
			if !ok || strings.TrimSpace(label) == "" {
				label = "true"
			}
			guard, err := ltlf.Parse(label)
			if err != nil {
				return nil, fmt.Errorf("%w: guard %q: %v", ErrDOTSyntax, label, err)
			}
			if guard.IsTemporal() {
				return nil, fmt.Errorf("%w: guard %q is not propositional", ErrDOTSyntax, label)
			}
			b.AddState(State(from), State(to))
			edges = append(edges, dotEdge{from: from, to: to, guard: guard})
		case strings.Contains(id, "="):
			// graph attribute such as rankdir = LR
		default:
			name := unquote(id)
			if name == initNode {
				continue
			}
			b.AddState(State(name))
			s := shape
			if v, ok := attrs["shape"]; ok {
				s = v
			}
			if s == "doublecircle" {
				b.Accept(State(name))
			}
		}
	}

	if initial == "" {
		return nil, &ConfigError{Field: "initial", Detail: "no init edge in DOT input"}
	}
	b.SetInitial(State(initial))

	if len(alphabet) == 0 {
		alphabet = guardAtoms(edges)
	}
	for _, e := range edges {
		for _, label := range alphabet {
			ok, err := ltlf.EvalProp(e.guard, map[string]bool{label: true})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDOTSyntax, err)
			}
			if !ok {
				continue
			}
			if err := b.AddTransition(State(e.from), label, State(e.to)); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

func guardAtoms(edges []dotEdge) []string {
	seen := make(map[string]struct{})
	for _, e := range edges {
		for _, a := range e.guard.Atoms() {
			seen[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// dotStatements splits DOT text into statements on ';', '{', '}' and line
// breaks outside double quotes.
func dotStatements(r io.Reader) ([]string, error) {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
		depth   int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	br := bufio.NewReader(r)
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if inQuote {
			cur.WriteByte(c)
			if c == '\\' {
				if n, err := br.ReadByte(); err == nil {
					cur.WriteByte(n)
				}
			} else if c == '"' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
			cur.WriteByte(c)
		case '[':
			depth++
			cur.WriteByte(c)
		case ']':
			depth--
			cur.WriteByte(c)
		case ';', '{', '}':
			flush()
		case '\n':
			if depth == 0 {
				flush()
			} else {
				cur.WriteByte(' ')
			}
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote || depth != 0 {
		return nil, fmt.Errorf("%w: unterminated quote or attribute list", ErrDOTSyntax)
	}
	flush()
	return stmts, nil
}

// splitAttrs separates "a -> b [label="x", k = v]" into the part before the
// bracket and its attributes.
func splitAttrs(stmt string) (string, map[string]string) {
	open := strings.IndexByte(stmt, '[')
	if open < 0 {
		return strings.TrimSpace(stmt), nil
	}
	head := strings.TrimSpace(stmt[:open])
	body := stmt[open+1:]
	if close := strings.LastIndexByte(body, ']'); close >= 0 {
		body = body[:close]
	}

	attrs := make(map[string]string)
	for _, kv := range splitOutsideQuotes(body, ',') {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		attrs[strings.TrimSpace(k)] = unquote(strings.TrimSpace(v))
	}
	return head, attrs
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}

// WriteDOT renders d in the same layout ParseDOT reads. Labels sharing a
// source and target are merged into one disjunctive guard.
func WriteDOT(w io.Writer, d *DFA) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph DFA {")
	fmt.Fprintln(bw, " rankdir = LR;")
	fmt.Fprintln(bw, " center = true;")

	var accepting, rest []string
	for _, s := range d.states {
		if d.accepting[s] {
			accepting = append(accepting, quoteID(string(s)))
		} else {
			rest = append(rest, quoteID(string(s)))
		}
	}
	if len(accepting) > 0 {
		fmt.Fprintf(bw, " node [shape = doublecircle]; %s;\n", strings.Join(accepting, "; "))
	}
	if len(rest) > 0 {
		fmt.Fprintf(bw, " node [shape = circle]; %s;\n", strings.Join(rest, "; "))
	}
	fmt.Fprintln(bw, ` init [shape = plaintext, label = ""];`)
	fmt.Fprintf(bw, " init -> %s;\n", quoteID(string(d.initial)))

	type pair struct{ from, to State }
	var order []pair
	labels := make(map[pair][]string)
	for _, t := range d.Transitions() {
		p := pair{t.From, t.To}
		if _, ok := labels[p]; !ok {
			order = append(order, p)
		}
		labels[p] = append(labels[p], ltlf.Atom(t.Label).String())
	}
	for _, p := range order {
		fmt.Fprintf(bw, " %s -> %s [label=%q];\n", quoteID(string(p.from)), quoteID(string(p.to)), strings.Join(labels[p], " | "))
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func quoteID(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return fmt.Sprintf("%q", s)
		}
	}
	if s == "" {
		return `""`
	}
	return s
}
