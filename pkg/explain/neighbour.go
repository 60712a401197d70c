package explain

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/encoding"
)

// NeighbourExplainer returns, for each query, the nearest background rows
// (Hamming distance over feature codes) that the model assigns to the
// opposite class. Ties keep background order, so results are
// deterministic.
type NeighbourExplainer struct{}

// Explain implements Explainer.
func (e *NeighbourExplainer) Explain(ctx context.Context, req Request) ([]Counterfactual, error) {
	if req.Queries == nil || req.Background == nil || req.Model == nil || req.Encoder == nil {
		return nil, fmt.Errorf("%w: queries, background, model and encoder are required", ErrIncompleteRequest)
	}
	if req.Search.Adapted && req.Acceptor == nil {
		return nil, fmt.Errorf("%w: adapted search needs an acceptor", ErrIncompleteRequest)
	}
	switch req.Search.Heuristic {
	case APriori, Online, MutateAndRetry:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHeuristic, req.Search.Heuristic)
	}
	if req.TotalCFs <= 0 {
		req.TotalCFs = DefaultTotalCFs
	}
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := newSpace(req)
	if err != nil {
		return nil, err
	}

	bg := make([][]float64, len(req.Background.Rows))
	for i, row := range req.Background.Rows {
		if bg[i], err = s.vector(row); err != nil {
			return nil, fmt.Errorf("background row %d: %w", i, err)
		}
	}
	bgPred := req.Model.Predict(bg)

	idIdx := req.Queries.ColumnIndex(encoding.ColTraceID)
	var out []Counterfactual
	for qi, q := range req.Queries.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qv, err := s.vector(q)
		if err != nil {
			return nil, fmt.Errorf("query row %d: %w", qi, err)
		}
		desired := 1 - req.Model.Predict([][]float64{qv})[0]

		var cands []int
		for i, p := range bgPred {
			if p == desired {
				cands = append(cands, i)
			}
		}
		dist := make(map[int]int, len(cands))
		for _, i := range cands {
			dist[i] = hamming(qv, bg[i])
		}
		sort.SliceStable(cands, func(a, b int) bool { return dist[cands[a]] < dist[cands[b]] })

		queryID := strconv.Itoa(qi)
		if idIdx >= 0 {
			queryID = q[idIdx]
		}

		var found [][]float64
		var dists []int
		switch req.Search.Heuristic {
		case APriori:
			if req.Search.Adapted {
				cands = s.filterConformant(cands, bg)
			}
			found, dists = s.take(cands, bg, dist, req.TotalCFs, false)
		case Online:
			found, dists = s.take(cands, bg, dist, req.TotalCFs, req.Search.Adapted)
		case MutateAndRetry:
			found, dists = s.mutate(qv, cands, bg, desired, req.TotalCFs, req.Search.Adapted)
		}

		for rank, v := range found {
			row, err := s.decode(v)
			if err != nil {
				return nil, err
			}
			out = append(out, Counterfactual{
				QueryID:    queryID,
				Rank:       rank + 1,
				Row:        row,
				Distance:   dists[rank],
				Conformant: s.conformant(v),
			})
		}
	}

	if req.ResultDir != "" {
		if err := writeArtifacts(req, s.columns, out); err != nil {
			return nil, err
		}
	}

	sum := Summarize(len(req.Queries.Rows), out)
	logger.Info("counterfactual search finished",
		zap.String("dataset", req.Dataset),
		zap.Int("prefix_length", req.PrefixLength),
		zap.String("tier", req.Tier),
		zap.Stringer("search", req.Search),
		zap.Int("queries", sum.Queries),
		zap.Int("explained", sum.Explained),
		zap.Int("counterfactuals", sum.Counterfactuals),
		zap.Int("conformant", sum.Conformant),
	)
	return out, nil
}

// space knows how to read, decode and check rows of one request.
type space struct {
	req     Request
	columns []string
	index   []int
	prefix  []bool
	verdict map[string]bool
}

func newSpace(req Request) (*space, error) {
	cols := req.Queries.FeatureColumns()
	s := &space{
		req:     req,
		columns: cols,
		index:   make([]int, len(cols)),
		prefix:  make([]bool, len(cols)),
		verdict: make(map[string]bool),
	}
	for i, c := range cols {
		s.index[i] = req.Queries.ColumnIndex(c)
		if bi := req.Background.ColumnIndex(c); bi != s.index[i] {
			return nil, fmt.Errorf("%w: background column %q", encoding.ErrShapeMismatch, c)
		}
		s.prefix[i] = strings.HasPrefix(c, "prefix_")
	}
	return s, nil
}

func (s *space) vector(row []string) ([]float64, error) {
	v := make([]float64, len(s.index))
	for i, ci := range s.index {
		f, err := strconv.ParseFloat(row[ci], 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", s.columns[i], err)
		}
		v[i] = f
	}
	return v, nil
}

func (s *space) decode(v []float64) ([]string, error) {
	out := make([]string, len(v))
	for i, code := range v {
		val, err := s.req.Encoder.Value(s.columns[i], int(code))
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// conformant runs the acceptor over the prefix activities of v. Padding
// becomes the placeholder activity, as when the population log is built.
// Without an acceptor every row conforms.
func (s *space) conformant(v []float64) bool {
	if s.req.Acceptor == nil {
		return true
	}
	key := vectorKey(v)
	if ok, cached := s.verdict[key]; cached {
		return ok
	}
	labels := make([]string, 0, len(v))
	for i, code := range v {
		if !s.prefix[i] {
			continue
		}
		val, err := s.req.Encoder.Value(s.columns[i], int(code))
		if err != nil {
			s.verdict[key] = false
			return false
		}
		if val == encoding.PrefixPad {
			val = encoding.PadActivity
		}
		labels = append(labels, val)
	}
	ok := s.req.Acceptor.Run(labels).Accepted
	s.verdict[key] = ok
	return ok
}

func (s *space) filterConformant(cands []int, bg [][]float64) []int {
	out := cands[:0:0]
	for _, i := range cands {
		if s.conformant(bg[i]) {
			out = append(out, i)
		}
	}
	return out
}

// take returns up to n distinct candidates in order, skipping
// non-conformant ones when check is set.
func (s *space) take(cands []int, bg [][]float64, dist map[int]int, n int, check bool) ([][]float64, []int) {
	var found [][]float64
	var dists []int
	seen := make(map[string]bool)
	for _, i := range cands {
		if len(found) == n {
			break
		}
		key := vectorKey(bg[i])
		if seen[key] {
			continue
		}
		if check && !s.conformant(bg[i]) {
			continue
		}
		seen[key] = true
		found = append(found, bg[i])
		dists = append(dists, dist[i])
	}
	return found, dists
}

// mutate walks candidates in distance order, copying one differing position
// at a time from the candidate into the query until the prediction flips
// (and, when check is set, the result conforms).
func (s *space) mutate(q []float64, cands []int, bg [][]float64, desired, n int, check bool) ([][]float64, []int) {
	var found [][]float64
	var dists []int
	seen := make(map[string]bool)
	for _, i := range cands {
		if len(found) == n {
			break
		}
		cur := append([]float64(nil), q...)
		steps := 0
		for j := range cur {
			if cur[j] == bg[i][j] {
				continue
			}
			cur[j] = bg[i][j]
			steps++
			if s.req.Model.Predict([][]float64{cur})[0] != desired {
				continue
			}
			if check && !s.conformant(cur) {
				continue
			}
			key := vectorKey(cur)
			if !seen[key] {
				seen[key] = true
				found = append(found, append([]float64(nil), cur...))
				dists = append(dists, steps)
			}
			break
		}
	}
	return found, dists
}

func hamming(a, b []float64) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

func vectorKey(v []float64) string {
	var sb strings.Builder
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return sb.String()
}
