package ltlf

import "fmt"

// Eval reports whether the finite trace satisfies f at its first position.
//
// Position i of the trace makes exactly the proposition labels[i] true. The
// empty trace follows the usual LTLf conventions: G holds, F and X fail,
// WX holds and atoms are false.
func Eval(f *Formula, labels []string) bool {
	return f.eval(labels)[0]
}

// eval returns, for every suffix start i in [0, n], whether f holds there.
// Index n stands for the empty suffix.
func (f *Formula) eval(labels []string) []bool {
	n := len(labels)
	v := make([]bool, n+1)

	switch f.Op {
	case OpAtom:
		for i := 0; i < n; i++ {
			v[i] = labels[i] == f.Name
		}
	case OpTrue:
		for i := range v {
			v[i] = true
		}
	case OpFalse:
	case OpLast:
		if n > 0 {
			v[n-1] = true
		}
	case OpNot:
		l := f.Left.eval(labels)
		for i := range v {
			v[i] = !l[i]
		}
	case OpAnd, OpOr, OpImplies, OpEquiv:
		l, r := f.Left.eval(labels), f.Right.eval(labels)
		for i := range v {
			switch f.Op {
			case OpAnd:
				v[i] = l[i] && r[i]
			case OpOr:
				v[i] = l[i] || r[i]
			case OpImplies:
				v[i] = !l[i] || r[i]
			case OpEquiv:
				v[i] = l[i] == r[i]
			}
		}
	case OpNext:
		l := f.Left.eval(labels)
		for i := 0; i+1 < n; i++ {
			v[i] = l[i+1]
		}
	case OpWeakNext:
		l := f.Left.eval(labels)
		for i := range v {
			v[i] = i+1 >= n || l[i+1]
		}
	case OpGlobally:
		l := f.Left.eval(labels)
		v[n] = true
		for i := n - 1; i >= 0; i-- {
			v[i] = l[i] && v[i+1]
		}
	case OpFinally:
		l := f.Left.eval(labels)
		for i := n - 1; i >= 0; i-- {
			v[i] = l[i] || v[i+1]
		}
	case OpUntil:
		l, r := f.Left.eval(labels), f.Right.eval(labels)
		for i := n - 1; i >= 0; i-- {
			v[i] = r[i] || (l[i] && v[i+1])
		}
	case OpRelease:
		l, r := f.Left.eval(labels), f.Right.eval(labels)
		v[n] = true
		for i := n - 1; i >= 0; i-- {
			v[i] = r[i] && (l[i] || v[i+1])
		}
	}
	return v
}

// EvalProp evaluates a purely propositional formula under an assignment.
// Missing propositions are false.
func EvalProp(f *Formula, props map[string]bool) (bool, error) {
	switch f.Op {
	case OpAtom:
		return props[f.Name], nil
	case OpTrue:
		return true, nil
	case OpFalse:
		return false, nil
	case OpNot:
		v, err := EvalProp(f.Left, props)
		return !v, err
	case OpAnd, OpOr, OpImplies, OpEquiv:
		l, err := EvalProp(f.Left, props)
		if err != nil {
			return false, err
		}
		r, err := EvalProp(f.Right, props)
		if err != nil {
			return false, err
		}
		switch f.Op {
		case OpAnd:
			return l && r, nil
		case OpOr:
			return l || r, nil
		case OpImplies:
			return !l || r, nil
		default:
			return l == r, nil
		}
	default:
		return false, fmt.Errorf("%w: %s", ErrTemporal, f.Op)
	}
}
