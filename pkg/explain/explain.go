// Package explain searches for counterfactual prefixes: background rows
// that flip the model's prediction for a query, optionally restricted to
// prefixes that satisfy the process model.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/encoding"
	"github.com/logflow/conformflow/pkg/predictive"
)

var (
	// ErrUnknownMethod is returned for an unsupported search method.
	ErrUnknownMethod = errors.New("explain: unknown method")

	// ErrUnknownHeuristic is returned for an unsupported heuristic.
	ErrUnknownHeuristic = errors.New("explain: unknown heuristic")

	// ErrIncompleteRequest is returned when a required request field is nil.
	ErrIncompleteRequest = errors.New("explain: incomplete request")
)

// DefaultTotalCFs is the number of counterfactuals requested per query.
const DefaultTotalCFs = 5

// Method is a counterfactual search strategy.
type Method uint8

const (
	// Neighbour searches the background for the nearest rows of the
	// opposite class.
	Neighbour Method = iota + 1
)

// String returns the method name used in artifact names.
func (m Method) String() string {
	switch m {
	case Neighbour:
		return "baseline"
	default:
		return "unknown"
	}
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline", "neighbour", "neighbor":
		return Neighbour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Heuristic decides where conformance enters the search.
type Heuristic uint8

const (
	// APriori drops non-conformant background rows before searching.
	APriori Heuristic = iota + 1
	// Online checks each candidate as the search reaches it.
	Online
	// MutateAndRetry copies positions from the neighbour into the query
	// one at a time until the result flips and conforms.
	MutateAndRetry
)

// String returns the heuristic name used in artifact names.
func (h Heuristic) String() string {
	switch h {
	case APriori:
		return "heuristic_1"
	case Online:
		return "heuristic_2"
	case MutateAndRetry:
		return "mar"
	default:
		return "unknown"
	}
}

// ParseHeuristic parses a heuristic name.
func ParseHeuristic(s string) (Heuristic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heuristic_1", "apriori":
		return APriori, nil
	case "heuristic_2", "online":
		return Online, nil
	case "mar", "mutate_and_retry":
		return MutateAndRetry, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownHeuristic, s)
	}
}

// Search is one explainer configuration. Adapted=false ignores conformance.
type Search struct {
	Method    Method
	Heuristic Heuristic
	Adapted   bool
}

// String returns "<method>_<heuristic>_<adapted>".
func (s Search) String() string {
	return fmt.Sprintf("%s_%s_%t", s.Method, s.Heuristic, s.Adapted)
}

// Request carries everything one explanation pass needs. Queries and
// Background are label-encoded tables sharing the same columns.
type Request struct {
	Dataset      string
	PrefixLength int
	Tier         string

	Queries    *encoding.Table
	Background *encoding.Table

	Model    predictive.Model
	Encoder  *encoding.LabelEncoder
	Acceptor conformance.Acceptor

	Search   Search
	TotalCFs int

	// ResultDir receives the CSV and Parquet artifacts. Empty skips them.
	ResultDir string
	Logger    *zap.Logger
}

// ArtifactName returns the base file name (without extension) of the
// request's artifacts.
func (r Request) ArtifactName() string {
	return fmt.Sprintf("cf_%s_%d_%s_%s", r.Dataset, r.PrefixLength, r.Tier, r.Search)
}

// Counterfactual is one alternative prefix for a query. Row holds decoded
// activity labels, one per prefix column.
type Counterfactual struct {
	QueryID    string
	Rank       int
	Row        []string
	Distance   int
	Conformant bool
}

// Explainer produces counterfactuals for every query of a request.
type Explainer interface {
	Explain(ctx context.Context, req Request) ([]Counterfactual, error)
}

// New returns the explainer implementing m.
func New(m Method) (Explainer, error) {
	switch m {
	case Neighbour:
		return &NeighbourExplainer{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, m)
	}
}

// Summary aggregates one pass.
type Summary struct {
	Queries         int
	Explained       int
	Counterfactuals int
	Conformant      int
	MeanDistance    float64
}

// Summarize counts explained queries and conformant counterfactuals.
func Summarize(queries int, cfs []Counterfactual) Summary {
	s := Summary{Queries: queries, Counterfactuals: len(cfs)}
	seen := make(map[string]bool)
	var dist int
	for _, cf := range cfs {
		if !seen[cf.QueryID] {
			seen[cf.QueryID] = true
			s.Explained++
		}
		if cf.Conformant {
			s.Conformant++
		}
		dist += cf.Distance
	}
	if len(cfs) > 0 {
		s.MeanDistance = float64(dist) / float64(len(cfs))
	}
	return s
}
