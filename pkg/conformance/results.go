package conformance

// ResultSet holds per-trace results in log order.
type ResultSet struct {
	results []Result
	index   map[string]int
}

// NewResultSet wraps results, keeping their order.
func NewResultSet(results []Result) *ResultSet {
	idx := make(map[string]int, len(results))
	for i, r := range results {
		idx[r.CaseID] = i
	}
	return &ResultSet{results: results, index: idx}
}

// Len returns the number of results.
func (rs *ResultSet) Len() int { return len(rs.results) }

// Results returns the results in log order. The slice must not be modified.
func (rs *ResultSet) Results() []Result { return rs.results }

// Lookup returns the result for a case.
func (rs *ResultSet) Lookup(caseID string) (Result, bool) {
	i, ok := rs.index[caseID]
	if !ok {
		return Result{}, false
	}
	return rs.results[i], true
}

// Accepted returns the accepted case ids in log order.
func (rs *ResultSet) Accepted() []string {
	return rs.caseIDs(true)
}

// Rejected returns the rejected case ids in log order.
func (rs *ResultSet) Rejected() []string {
	return rs.caseIDs(false)
}

func (rs *ResultSet) caseIDs(accepted bool) []string {
	out := make([]string, 0, len(rs.results))
	for _, r := range rs.results {
		if r.Accepted == accepted {
			out = append(out, r.CaseID)
		}
	}
	return out
}

// AcceptedCount returns how many traces were accepted.
func (rs *ResultSet) AcceptedCount() int {
	n := 0
	for _, r := range rs.results {
		if r.Accepted {
			n++
		}
	}
	return n
}

// Rate returns the accepted fraction, or 0 for an empty set.
func (rs *ResultSet) Rate() float64 {
	if len(rs.results) == 0 {
		return 0
	}
	return float64(rs.AcceptedCount()) / float64(len(rs.results))
}

// Filter returns the subset of ids whose case was accepted, in the given
// order. Unknown ids are dropped.
func (rs *ResultSet) Filter(caseIDs []string) []string {
	out := make([]string, 0, len(caseIDs))
	for _, id := range caseIDs {
		if r, ok := rs.Lookup(id); ok && r.Accepted {
			out = append(out, id)
		}
	}
	return out
}

// AcceptedSet returns the accepted case ids as a set.
func (rs *ResultSet) AcceptedSet() map[string]bool {
	out := make(map[string]bool, len(rs.results))
	for _, r := range rs.results {
		if r.Accepted {
			out[r.CaseID] = true
		}
	}
	return out
}
