package predictive

import (
	"math"
	"math/rand"
)

// perceptron is an averaged perceptron over one-hot features. Scores are
// squashed with a logistic function to give probabilities.
type perceptron struct {
	rate   float64
	epochs int
	seed   int64

	enc  *onehot
	w    []float64
	bias float64
}

func newPerceptron(p Params) *perceptron {
	return &perceptron{
		rate:   p.Get("learning_rate", 0.1),
		epochs: int(p.Get("epochs", 20)),
		seed:   int64(p.Get("seed", 42)),
	}
}

func (m *perceptron) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	m.enc = fitOnehot(X)
	dim := len(m.enc.index)

	w := make([]float64, dim)
	var b float64
	sumW := make([]float64, dim)
	var sumB float64
	steps := 0

	rows := make([][]int, len(X))
	for i, x := range X {
		rows[i] = m.enc.active(x)
	}
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(m.seed))

	epochs := m.epochs
	if epochs < 1 {
		epochs = 1
	}
	for e := 0; e < epochs; e++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			target := -1.0
			if y[i] == 1 {
				target = 1
			}
			score := b
			for _, f := range rows[i] {
				score += w[f]
			}
			if target*score <= 0 {
				for _, f := range rows[i] {
					w[f] += m.rate * target
				}
				b += m.rate * target
			}
			for f := range w {
				sumW[f] += w[f]
			}
			sumB += b
			steps++
		}
	}

	m.w = make([]float64, dim)
	for f := range w {
		m.w[f] = sumW[f] / float64(steps)
	}
	m.bias = sumB / float64(steps)
	return nil
}

func (m *perceptron) score(x []float64) float64 {
	s := m.bias
	if m.enc == nil {
		return s
	}
	for _, f := range m.enc.active(x) {
		s += m.w[f]
	}
	return s
}

func (m *perceptron) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = 1 / (1 + math.Exp(-m.score(x)/math.Max(m.rate, 1e-9)))
	}
	return out
}

func (m *perceptron) Predict(X [][]float64) []int {
	return predictFromProba(m.PredictProba(X))
}
