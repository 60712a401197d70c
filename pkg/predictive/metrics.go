package predictive

import (
	"fmt"
	"sort"
	"strings"
)

// Target is the metric hyperparameter search maximises.
type Target uint8

const (
	TargetAUC Target = iota + 1
	TargetF1
	TargetAccuracy
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case TargetAUC:
		return "auc"
	case TargetF1:
		return "f1_score"
	case TargetAccuracy:
		return "accuracy"
	default:
		return "unknown"
	}
}

// ParseTarget parses a target name.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auc":
		return TargetAUC, nil
	case "f1", "f1_score":
		return TargetF1, nil
	case "accuracy":
		return TargetAccuracy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

// Metrics summarises binary classification quality.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	AUC       float64 `json:"auc"`
}

// Get returns the value selected by target.
func (m Metrics) Get(t Target) float64 {
	switch t {
	case TargetAUC:
		return m.AUC
	case TargetF1:
		return m.F1
	default:
		return m.Accuracy
	}
}

// Evaluate compares predictions against actual classes. scores are class-1
// probabilities used for AUC; nil scores fall back to the hard predictions.
// AUC is 0.5 when only one class is present.
func Evaluate(actual, predicted []int, scores []float64) Metrics {
	var tp, fp, tn, fn float64
	for i := range actual {
		switch {
		case actual[i] == 1 && predicted[i] == 1:
			tp++
		case actual[i] != 1 && predicted[i] == 1:
			fp++
		case actual[i] != 1 && predicted[i] != 1:
			tn++
		default:
			fn++
		}
	}

	var m Metrics
	if n := tp + fp + tn + fn; n > 0 {
		m.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	if scores == nil {
		scores = make([]float64, len(predicted))
		for i, p := range predicted {
			scores[i] = float64(p)
		}
	}
	m.AUC = auc(actual, scores)
	return m
}

// auc is the Mann-Whitney estimate with average ranks for ties.
func auc(actual []int, scores []float64) float64 {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, a := range actual {
		if a == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
