package ltlf

import (
	"fmt"
	"strings"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuoted
	tokLParen
	tokRParen
	tokNot
	tokAnd
	tokOr
	tokImplies
	tokEquiv
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// isIdent reports whether s lexes as a single identifier.
func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func lex(input string) ([]token, error) {
	var toks []token
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '!' || c == '~':
			toks = append(toks, token{tokNot, "!", i})
			i++
		case c == '&':
			n := 1
			if i+1 < len(input) && input[i+1] == '&' {
				n = 2
			}
			toks = append(toks, token{tokAnd, "&", i})
			i += n
		case c == '|':
			n := 1
			if i+1 < len(input) && input[i+1] == '|' {
				n = 2
			}
			toks = append(toks, token{tokOr, "|", i})
			i += n
		case strings.HasPrefix(input[i:], "<->"):
			toks = append(toks, token{tokEquiv, "<->", i})
			i += 3
		case strings.HasPrefix(input[i:], "->"):
			toks = append(toks, token{tokImplies, "->", i})
			i += 2
		case c == '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Input: input, Pos: i, Msg: "unterminated quoted proposition"}
			}
			if end == 0 {
				return nil, &SyntaxError{Input: input, Pos: i, Msg: "empty quoted proposition"}
			}
			toks = append(toks, token{tokQuoted, input[i+1 : i+1+end], i})
			i += end + 2
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, input[start:i], start})
		default:
			return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

var unaryKeywords = map[string]Op{
	"X":  OpNext,
	"WX": OpWeakNext,
	"G":  OpGlobally,
	"F":  OpFinally,
}

var binaryKeywords = map[string]Op{
	"U": OpUntil,
	"R": OpRelease,
}

var constants = map[string]Op{
	"true":  OpTrue,
	"false": OpFalse,
	"last":  OpLast,
	"end":   OpLast,
}

func isKeyword(s string) bool {
	_, u := unaryKeywords[s]
	_, b := binaryKeywords[s]
	_, c := constants[s]
	return u || b || c
}

type parser struct {
	input string
	toks  []token
	pos   int
}

// Parse parses an LTLf formula. Precedence from loosest to tightest is
// <->, -> (right associative), |, &, U and R (right associative), then the
// prefix operators ! ~ X WX G F.
//
// A proposition in double quotes is always an atom, so activities named
// like a keyword ("end", "last", "true", "G") or containing other
// characters ("a-b") can still be referenced.
func Parse(input string) (*Formula, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, p.errorf("empty formula")
	}
	f, err := p.parseEquiv()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf("unexpected %q", t.text)
	}
	return f, nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string) *Formula {
	f, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return f
}

// Normalize lowercases every proposition name and returns the canonical
// rendering. Operator keywords are left alone.
func Normalize(input string) (string, error) {
	f, err := Parse(input)
	if err != nil {
		return "", err
	}
	f.walk(func(n *Formula) {
		if n.Op == OpAtom {
			n.Name = strings.ToLower(n.Name)
		}
	})
	return f.String(), nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.input, Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseEquiv() (*Formula, error) {
	left, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokEquiv {
		p.next()
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		left = &Formula{Op: OpEquiv, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseImplies() (*Formula, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokImplies {
		return left, nil
	}
	p.next()
	right, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	return &Formula{Op: OpImplies, Left: left, Right: right}, nil
}

func (p *parser) parseOr() (*Formula, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Formula, error) {
	left, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUntil()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseUntil() (*Formula, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokIdent {
		return left, nil
	}
	op, ok := binaryKeywords[t.text]
	if !ok {
		return left, nil
	}
	p.next()
	right, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	return &Formula{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseUnary() (*Formula, error) {
	t := p.peek()
	if t.kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	if t.kind == tokIdent {
		if op, ok := unaryKeywords[t.text]; ok {
			p.next()
			inner, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Formula{Op: op, Left: inner}, nil
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Formula, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		f, err := p.parseEquiv()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.next()
		return f, nil
	case tokQuoted:
		p.next()
		return Atom(t.text), nil
	case tokIdent:
		if op, ok := constants[t.text]; ok {
			p.next()
			return &Formula{Op: op}, nil
		}
		if isKeyword(t.text) {
			return nil, p.errorf("operator %q used as an operand; quote it to name an activity", t.text)
		}
		p.next()
		return Atom(t.text), nil
	case tokEOF:
		return nil, p.errorf("unexpected end of formula")
	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
}
