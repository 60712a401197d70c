// Package ltlf parses Linear Temporal Logic formulas and evaluates them
// over finite traces.
//
// A trace is read as a sequence of activity labels where each position makes
// exactly one proposition true: the label recorded at that position.
package ltlf

import (
	"sort"
	"strings"
)

// Op identifies the kind of a formula node.
type Op uint8

const (
	OpAtom Op = iota
	OpTrue
	OpFalse
	OpLast
	OpNot
	OpAnd
	OpOr
	OpImplies
	OpEquiv
	OpNext
	OpWeakNext
	OpUntil
	OpRelease
	OpGlobally
	OpFinally
)

var opNames = [...]string{
	OpAtom:     "atom",
	OpTrue:     "true",
	OpFalse:    "false",
	OpLast:     "last",
	OpNot:      "!",
	OpAnd:      "&",
	OpOr:       "|",
	OpImplies:  "->",
	OpEquiv:    "<->",
	OpNext:     "X",
	OpWeakNext: "WX",
	OpUntil:    "U",
	OpRelease:  "R",
	OpGlobally: "G",
	OpFinally:  "F",
}

// String returns the operator symbol.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Temporal reports whether the operator refers to other trace positions.
func (o Op) Temporal() bool {
	switch o {
	case OpLast, OpNext, OpWeakNext, OpUntil, OpRelease, OpGlobally, OpFinally:
		return true
	}
	return false
}

func (o Op) binary() bool {
	switch o {
	case OpAnd, OpOr, OpImplies, OpEquiv, OpUntil, OpRelease:
		return true
	}
	return false
}

// Formula is an LTLf syntax tree node. Unary operators use Left only.
type Formula struct {
	Op    Op
	Name  string
	Left  *Formula
	Right *Formula
}

// Atom returns a proposition node.
func Atom(name string) *Formula { return &Formula{Op: OpAtom, Name: name} }

// Not negates f.
func Not(f *Formula) *Formula { return &Formula{Op: OpNot, Left: f} }

// And conjoins l and r.
func And(l, r *Formula) *Formula { return &Formula{Op: OpAnd, Left: l, Right: r} }

// Or disjoins l and r.
func Or(l, r *Formula) *Formula { return &Formula{Op: OpOr, Left: l, Right: r} }

// Next is the strong next operator.
func Next(f *Formula) *Formula { return &Formula{Op: OpNext, Left: f} }

// Until returns l U r.
func Until(l, r *Formula) *Formula { return &Formula{Op: OpUntil, Left: l, Right: r} }

// Globally returns G f.
func Globally(f *Formula) *Formula { return &Formula{Op: OpGlobally, Left: f} }

// Finally returns F f.
func Finally(f *Formula) *Formula { return &Formula{Op: OpFinally, Left: f} }

// String renders the formula in a canonical, fully parenthesised form that
// Parse accepts.
func (f *Formula) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Formula) write(b *strings.Builder) {
	switch {
	case f.Op == OpAtom:
		if isKeyword(f.Name) || !isIdent(f.Name) {
			b.WriteByte('"')
			b.WriteString(f.Name)
			b.WriteByte('"')
			break
		}
		b.WriteString(f.Name)
	case f.Op == OpTrue, f.Op == OpFalse, f.Op == OpLast:
		b.WriteString(f.Op.String())
	case f.Op == OpNot:
		b.WriteString("!")
		f.Left.write(b)
	case f.Op.binary():
		b.WriteByte('(')
		f.Left.write(b)
		b.WriteByte(' ')
		b.WriteString(f.Op.String())
		b.WriteByte(' ')
		f.Right.write(b)
		b.WriteByte(')')
	default:
		b.WriteString(f.Op.String())
		b.WriteByte('(')
		f.Left.write(b)
		b.WriteByte(')')
	}
}

// Atoms returns the sorted, distinct proposition names in f.
func (f *Formula) Atoms() []string {
	seen := make(map[string]struct{})
	f.walk(func(n *Formula) {
		if n.Op == OpAtom {
			seen[n.Name] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsTemporal reports whether any node of f is a temporal operator.
func (f *Formula) IsTemporal() bool {
	temporal := false
	f.walk(func(n *Formula) {
		if n.Op.Temporal() {
			temporal = true
		}
	})
	return temporal
}

func (f *Formula) walk(fn func(*Formula)) {
	if f == nil {
		return
	}
	fn(f)
	f.Left.walk(fn)
	f.Right.walk(fn)
}

// Equal reports structural equality.
func (f *Formula) Equal(g *Formula) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.Op == g.Op && f.Name == g.Name && f.Left.Equal(g.Left) && f.Right.Equal(g.Right)
}
