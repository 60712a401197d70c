package experiment

import (
	"fmt"

	"github.com/logflow/conformflow/pkg/checkpoint"
	"github.com/logflow/conformflow/pkg/explain"
)

// SearchConfig expands into one explainer search per heuristic.
type SearchConfig struct {
	Method     explain.Method
	Heuristics []explain.Heuristic
	Adapted    bool
}

// DefaultSearches returns the baseline without conformance followed by
// the three conformance-aware heuristics.
func DefaultSearches() []SearchConfig {
	return []SearchConfig{
		{Method: explain.Neighbour, Heuristics: []explain.Heuristic{explain.APriori}, Adapted: false},
		{Method: explain.Neighbour, Heuristics: []explain.Heuristic{explain.APriori, explain.Online, explain.MutateAndRetry}, Adapted: true},
	}
}

// Matrix selects what to run. Empty Datasets means all known datasets;
// a dataset missing from Prefixes uses its published prefix lengths.
type Matrix struct {
	Datasets []string
	Prefixes map[string][]int
	Tiers    []string
	Searches []SearchConfig
}

// Run describes one explanation pass.
type Run struct {
	Dataset      string
	PrefixLength int
	Tier         Tier
	Search       explain.Search
}

// Key is the stable name of the run.
func (r Run) Key() string {
	return fmt.Sprintf("%s/%d/%s/%s", r.Dataset, r.PrefixLength, r.Tier.Name, r.Search)
}

// ID is the deterministic checkpoint ID of the run.
func (r Run) ID() string {
	return checkpoint.RunID(r.Key())
}

// TierKey names the conformance pass a run belongs to.
func (r Run) TierKey() string {
	return fmt.Sprintf("%s/%d/%s", r.Dataset, r.PrefixLength, r.Tier.Name)
}

// Plan expands the matrix into runs ordered dataset, prefix, tier, search.
func Plan(m Matrix) ([]Run, error) {
	names := m.Datasets
	if len(names) == 0 {
		for _, d := range datasets {
			names = append(names, d.Name)
		}
	}
	searches := m.Searches
	if len(searches) == 0 {
		searches = DefaultSearches()
	}
	wantTier := make(map[string]bool, len(m.Tiers))
	for _, t := range m.Tiers {
		wantTier[t] = true
	}

	var runs []Run
	for _, name := range names {
		d, err := LookupDataset(name)
		if err != nil {
			return nil, err
		}
		prefixes := d.PrefixLengths
		if p, ok := m.Prefixes[name]; ok {
			prefixes = p
		}
		for _, prefix := range prefixes {
			for _, tier := range d.Tiers {
				if len(wantTier) > 0 && !wantTier[tier.Name] {
					continue
				}
				for _, sc := range searches {
					for _, h := range sc.Heuristics {
						runs = append(runs, Run{
							Dataset:      d.Name,
							PrefixLength: prefix,
							Tier:         tier,
							Search:       explain.Search{Method: sc.Method, Heuristic: h, Adapted: sc.Adapted},
						})
					}
				}
			}
		}
	}
	return runs, nil
}
