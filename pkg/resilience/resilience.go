// Package resilience provides retry and circuit breaking for calls to
// remote stores.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker stops calling a failing dependency after a run of
// consecutive failures, then lets one call through after the cooldown.
type CircuitBreaker struct {
	mu sync.Mutex

	// Configuration
	maxFailures    int
	cooldownPeriod time.Duration

	// State
	state       CircuitState
	failures    int
	lastFailure time.Time
	tripTime    time.Time

	now func() time.Time

	// Callbacks
	OnTrip  func(failures int)
	OnReset func()
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Rejecting requests
	CircuitHalfOpen                     // Testing if the dependency recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// NewCircuitBreaker creates a breaker that trips after five consecutive
// failures and cools down for 30 seconds.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:    5,
		cooldownPeriod: 30 * time.Second,
		state:          CircuitClosed,
		now:            time.Now,
	}
}

// WithMaxFailures sets the consecutive failures that trip the breaker.
func (cb *CircuitBreaker) WithMaxFailures(n int) *CircuitBreaker {
	if n > 0 {
		cb.maxFailures = n
	}
	return cb
}

// WithCooldown sets the cooldown period after tripping.
func (cb *CircuitBreaker) WithCooldown(d time.Duration) *CircuitBreaker {
	cb.cooldownPeriod = d
	return cb
}

// Allow checks if an operation should be allowed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.tripTime) >= cb.cooldownPeriod {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// Record reports the outcome of an allowed operation.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	if success {
		wasTripped := cb.state != CircuitClosed
		cb.failures = 0
		cb.state = CircuitClosed
		cb.mu.Unlock()
		if wasTripped && cb.OnReset != nil {
			cb.OnReset()
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	trip := cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failures >= cb.maxFailures)
	if trip {
		cb.state = CircuitOpen
		cb.tripTime = cb.lastFailure
	}
	failures := cb.failures
	cb.mu.Unlock()

	if trip && cb.OnTrip != nil {
		cb.OnTrip(failures)
	}
}

// Do runs fn unless the breaker is open. A nil error or one matching
// ignore counts as success.
func (cb *CircuitBreaker) Do(fn func() error, ignore func(error) bool) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.Record(err == nil || (ignore != nil && ignore(err)))
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Policy bounds retries with exponential backoff.
type Policy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy makes three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    100 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || (p.Retryable != nil && !p.Retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx))
}
