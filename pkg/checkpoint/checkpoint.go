// Package checkpoint records experiment run progress so an interrupted
// matrix can resume without repeating completed runs.
package checkpoint

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of a run.
type Phase string

const (
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// runNamespace scopes run IDs so equal keys in other tools never collide.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("conformflow/run"))

// RunID returns the deterministic ID of a run key.
func RunID(runKey string) string {
	return uuid.NewSHA1(runNamespace, []byte(runKey)).String()
}

// Checkpoint tracks one experiment run.
type Checkpoint struct {
	ID     string `json:"id"`
	RunKey string `json:"run_key"`
	Phase  Phase  `json:"phase"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New returns a running checkpoint for runKey.
func New(runKey string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		ID:        RunID(runKey),
		RunKey:    runKey,
		Phase:     PhaseRunning,
		StartedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]string),
	}
}

// SetPhase updates the phase, stamping CompletedAt on completion.
func (c *Checkpoint) SetPhase(p Phase) {
	now := time.Now()
	c.Phase = p
	c.UpdatedAt = now
	if p == PhaseComplete {
		c.CompletedAt = &now
	}
}

// Fail marks the run failed with err's message.
func (c *Checkpoint) Fail(err error) {
	c.SetPhase(PhaseFailed)
	if err != nil {
		c.Error = err.Error()
	}
}

// SetMetadata sets a metadata value.
func (c *Checkpoint) SetMetadata(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// Complete reports whether the run finished.
func (c *Checkpoint) Complete() bool {
	return c.Phase == PhaseComplete
}

// Duration returns how long the run has been (or was) running.
func (c *Checkpoint) Duration() time.Duration {
	if c.CompletedAt != nil {
		return c.CompletedAt.Sub(c.StartedAt)
	}
	return time.Since(c.StartedAt)
}
