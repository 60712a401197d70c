package predictive

import "math"

// naiveBayes is a categorical naive Bayes classifier with additive
// smoothing. Each feature column is treated as a categorical variable.
type naiveBayes struct {
	alpha float64

	prior  [2]float64
	counts [2]map[[2]float64]float64
	totals [2]float64
	values map[int]int
	nCols  int
}

func newNaiveBayes(p Params) *naiveBayes {
	return &naiveBayes{alpha: p.Get("alpha", 1)}
}

func (m *naiveBayes) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	m.counts = [2]map[[2]float64]float64{{}, {}}
	m.totals = [2]float64{}
	m.values = make(map[int]int)
	m.nCols = len(X[0])

	seen := make(map[[2]float64]bool)
	for i, row := range X {
		c := y[i]
		if c != 1 {
			c = 0
		}
		m.totals[c]++
		for j, v := range row {
			k := [2]float64{float64(j), v}
			m.counts[c][k]++
			if !seen[k] {
				seen[k] = true
				m.values[j]++
			}
		}
	}
	n := m.totals[0] + m.totals[1]
	for c := 0; c < 2; c++ {
		m.prior[c] = (m.totals[c] + m.alpha) / (n + 2*m.alpha)
	}
	return nil
}

func (m *naiveBayes) logLikelihood(c int, x []float64) float64 {
	ll := math.Log(m.prior[c])
	for j, v := range x {
		k := [2]float64{float64(j), v}
		card := float64(m.values[j] + 1)
		ll += math.Log((m.counts[c][k] + m.alpha) / (m.totals[c] + m.alpha*card))
	}
	return ll
}

func (m *naiveBayes) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if m.counts[0] == nil {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, x := range X {
		l0, l1 := m.logLikelihood(0, x), m.logLikelihood(1, x)
		out[i] = 1 / (1 + math.Exp(l0-l1))
	}
	return out
}

func (m *naiveBayes) Predict(X [][]float64) []int {
	return predictFromProba(m.PredictProba(X))
}
