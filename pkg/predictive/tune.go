package predictive

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Range is a search interval for one hyperparameter. Log ranges are sampled
// uniformly in log space; Int ranges are rounded.
type Range struct {
	Min, Max float64
	Log      bool
	Int      bool
}

func (r Range) sample(rng *rand.Rand) float64 {
	var v float64
	if r.Log {
		v = math.Exp(math.Log(r.Min) + rng.Float64()*(math.Log(r.Max)-math.Log(r.Min)))
	} else {
		v = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	if r.Int {
		v = math.Round(v)
	}
	return v
}

// Space returns the search space of a method.
func Space(m Method) map[string]Range {
	switch m {
	case Perceptron:
		return map[string]Range{
			"learning_rate": {Min: 1e-3, Max: 1, Log: true},
			"epochs":        {Min: 5, Max: 50, Int: true},
		}
	case NaiveBayes:
		return map[string]Range{
			"alpha": {Min: 1e-3, Max: 10, Log: true},
		}
	default:
		return nil
	}
}

// TuneOptions controls hyperparameter search.
type TuneOptions struct {
	MaxEvaluations int
	Target         Target
	Seed           int64
}

// Dataset pairs features with classes.
type Dataset struct {
	X [][]float64
	Y []int
}

// Tuned is the winner of a search.
type Tuned struct {
	Method Method
	Params Params
	Model  Model
	Score  float64
}

// Tune runs a seeded random search: each evaluation samples parameters,
// fits on train and scores on val. The first best score wins, so equal
// seeds give equal results.
func Tune(m Method, train, val Dataset, opts TuneOptions) (*Tuned, error) {
	space := Space(m)
	if space == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, m)
	}
	if opts.Target == 0 {
		opts.Target = TargetAUC
	}
	evals := opts.MaxEvaluations
	if evals < 1 {
		evals = 1
	}
	if len(val.X) == 0 {
		val = train
	}

	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(opts.Seed))
	var best *Tuned
	for e := 0; e < evals; e++ {
		p := Params{"seed": float64(opts.Seed)}
		for _, name := range names {
			p[name] = space[name].sample(rng)
		}
		model, err := New(m, p)
		if err != nil {
			return nil, err
		}
		if err := model.Fit(train.X, train.Y); err != nil {
			return nil, fmt.Errorf("tune %s: %w", m, err)
		}
		metrics := Evaluate(val.Y, model.Predict(val.X), model.PredictProba(val.X))
		score := metrics.Get(opts.Target)
		if best == nil || score > best.Score {
			best = &Tuned{Method: m, Params: p, Model: model, Score: score}
		}
	}
	return best, nil
}
