// Package predictive trains outcome classifiers on encoded prefix tables.
package predictive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownMethod is returned for an unsupported classifier name.
	ErrUnknownMethod = errors.New("predictive: unknown method")

	// ErrUnknownTarget is returned for an unsupported tuning target.
	ErrUnknownTarget = errors.New("predictive: unknown target")

	// ErrEmptyTraining is returned when Fit gets no rows.
	ErrEmptyTraining = errors.New("predictive: empty training set")

	// ErrShape is returned when X and y disagree.
	ErrShape = errors.New("predictive: feature/label shape mismatch")
)

// Method is a supported classifier.
type Method uint8

const (
	Perceptron Method = iota + 1
	NaiveBayes
)

// String returns the method name used in configuration files.
func (m Method) String() string {
	switch m {
	case Perceptron:
		return "perceptron"
	case NaiveBayes:
		return "naive_bayes"
	default:
		return "unknown"
	}
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "perceptron":
		return Perceptron, nil
	case "naive_bayes", "naivebayes", "nb":
		return NaiveBayes, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Model is a binary classifier over numeric feature rows. Class 1 is the
// positive (deviant) outcome.
type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	// PredictProba returns the probability of class 1 for every row.
	PredictProba(X [][]float64) []float64
}

// Params holds hyperparameters by name.
type Params map[string]float64

// Get returns p[name] or def when unset.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// New returns an untrained model.
func New(m Method, p Params) (Model, error) {
	switch m {
	case Perceptron:
		return newPerceptron(p), nil
	case NaiveBayes:
		return newNaiveBayes(p), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, m)
	}
}

func checkShape(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyTraining
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShape, len(X), len(y))
	}
	return nil
}

// onehot maps (column, value) pairs seen during fitting to indicator
// indexes. Encoded prefix tables hold category codes, not magnitudes.
type onehot struct {
	index map[[2]float64]int
}

func fitOnehot(X [][]float64) *onehot {
	o := &onehot{index: make(map[[2]float64]int)}
	for _, row := range X {
		for j, v := range row {
			k := [2]float64{float64(j), v}
			if _, ok := o.index[k]; !ok {
				o.index[k] = len(o.index)
			}
		}
	}
	return o
}

func (o *onehot) active(row []float64) []int {
	out := make([]int, 0, len(row))
	for j, v := range row {
		if i, ok := o.index[[2]float64{float64(j), v}]; ok {
			out = append(out, i)
		}
	}
	return out
}

func predictFromProba(p []float64) []int {
	out := make([]int, len(p))
	for i, v := range p {
		if v >= 0.5 {
			out[i] = 1
		}
	}
	return out
}
