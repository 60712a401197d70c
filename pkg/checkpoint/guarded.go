package checkpoint

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/logflow/conformflow/pkg/resilience"
)

// GuardedBackend retries calls to a remote backend and stops calling it
// while its circuit breaker is open. A missing checkpoint is an answer,
// not a failure.
type GuardedBackend struct {
	inner   Backend
	policy  resilience.Policy
	breaker *resilience.CircuitBreaker
}

// NewGuardedBackend wraps inner. A nil breaker uses the defaults.
func NewGuardedBackend(inner Backend, policy resilience.Policy, breaker *resilience.CircuitBreaker) *GuardedBackend {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker()
	}
	policy.Retryable = func(err error) bool {
		return !notFound(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return &GuardedBackend{inner: inner, policy: policy, breaker: breaker}
}

func notFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func (g *GuardedBackend) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return resilience.Retry(ctx, g.policy, func(ctx context.Context) error {
		return g.breaker.Do(func() error { return fn(ctx) }, notFound)
	})
}

// Save persists a checkpoint.
func (g *GuardedBackend) Save(ctx context.Context, cp *Checkpoint) error {
	return g.call(ctx, func(ctx context.Context) error { return g.inner.Save(ctx, cp) })
}

// Load retrieves a checkpoint by ID.
func (g *GuardedBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	var cp *Checkpoint
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		cp, err = g.inner.Load(ctx, id)
		return err
	})
	return cp, err
}

// Delete removes a checkpoint.
func (g *GuardedBackend) Delete(ctx context.Context, id string) error {
	return g.call(ctx, func(ctx context.Context) error { return g.inner.Delete(ctx, id) })
}

// List returns checkpoints whose run key starts with prefix.
func (g *GuardedBackend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	var cps []*Checkpoint
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		cps, err = g.inner.List(ctx, prefix)
		return err
	})
	return cps, err
}

// ListIncomplete returns checkpoints that haven't completed.
func (g *GuardedBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	var cps []*Checkpoint
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		cps, err = g.inner.ListIncomplete(ctx)
		return err
	})
	return cps, err
}

// Name returns the wrapped backend's name.
func (g *GuardedBackend) Name() string {
	return g.inner.Name()
}

// State reports the circuit breaker state.
func (g *GuardedBackend) State() resilience.CircuitState {
	return g.breaker.State()
}

// Close closes the wrapped backend when it holds a connection.
func (g *GuardedBackend) Close() error {
	if c, ok := g.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
