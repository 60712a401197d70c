package telemetry

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxSamples = 1000

// RunMetrics aggregates statistics over experiment runs.
type RunMetrics struct {
	mu sync.Mutex

	runs    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	cfs     atomic.Int64

	// last maxSamples run latencies
	latencies []time.Duration
}

// NewRunMetrics creates an empty collector.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{latencies: make([]time.Duration, 0, 64)}
}

// Observe records one finished run. Skipped runs count but contribute no
// latency sample.
func (m *RunMetrics) Observe(d time.Duration, counterfactuals int, skipped bool, err error) {
	m.runs.Add(1)
	switch {
	case err != nil:
		m.failed.Add(1)
		return
	case skipped:
		m.skipped.Add(1)
		return
	}
	m.cfs.Add(int64(counterfactuals))

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) >= maxSamples {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, d)
}

// Percentile returns the p-th percentile of recorded run latencies.
func (m *RunMetrics) Percentile(p float64) time.Duration {
	m.mu.Lock()
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	m.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Summary returns a snapshot.
func (m *RunMetrics) Summary() Summary {
	return Summary{
		Runs:            m.runs.Load(),
		Skipped:         m.skipped.Load(),
		Failed:          m.failed.Load(),
		Counterfactuals: m.cfs.Load(),
		P50:             m.Percentile(0.50),
		P95:             m.Percentile(0.95),
		P99:             m.Percentile(0.99),
	}
}

// Summary is a snapshot of RunMetrics.
type Summary struct {
	Runs            int64         `json:"runs"`
	Skipped         int64         `json:"skipped"`
	Failed          int64         `json:"failed"`
	Counterfactuals int64         `json:"counterfactuals"`
	P50             time.Duration `json:"p50_ns"`
	P95             time.Duration `json:"p95_ns"`
	P99             time.Duration `json:"p99_ns"`
}

// ToJSON serializes the summary.
func (s Summary) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}
