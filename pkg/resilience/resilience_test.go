package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_TripAndRecover(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker().WithMaxFailures(2).WithCooldown(time.Minute)
	cb.now = func() time.Time { return now }
	var trips, resets int
	cb.OnTrip = func(int) { trips++ }
	cb.OnReset = func() { resets++ }

	boom := errors.New("boom")
	fail := func() error { return boom }

	cb.Do(fail, nil)
	if cb.State() != CircuitClosed {
		t.Fatalf("State() after 1 failure = %v, want closed", cb.State())
	}
	cb.Do(fail, nil)
	if cb.State() != CircuitOpen || trips != 1 {
		t.Fatalf("State() after 2 failures = %v (%d trips), want open", cb.State(), trips)
	}
	if err := cb.Do(func() error { return nil }, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Do() while open = %v, want %v", err, ErrCircuitOpen)
	}

	now = now.Add(time.Minute)
	if err := cb.Do(fail, nil); !errors.Is(err, boom) {
		t.Errorf("Do() half-open = %v, want %v", err, boom)
	}
	if cb.State() != CircuitOpen || trips != 2 {
		t.Errorf("failed half-open call: State() = %v (%d trips), want open", cb.State(), trips)
	}

	now = now.Add(time.Minute)
	if err := cb.Do(func() error { return nil }, nil); err != nil {
		t.Errorf("Do() half-open success = %v", err)
	}
	if cb.State() != CircuitClosed || resets != 1 {
		t.Errorf("State() after recovery = %v (%d resets), want closed", cb.State(), resets)
	}
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	cb := NewCircuitBreaker().WithMaxFailures(1)
	missing := errors.New("missing")
	ignore := func(err error) bool { return errors.Is(err, missing) }
	for i := 0; i < 3; i++ {
		cb.Do(func() error { return missing }, ignore)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestRetry(t *testing.T) {
	fast := Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
	transient := errors.New("transient")
	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"first try", 0, nil, 1, nil},
		{"recovers", 2, transient, 3, nil},
		{"exhausted", 5, transient, 3, transient},
		{"not retryable", 5, permanent, 1, permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fast
			p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
			calls := 0
			err := Retry(context.Background(), p, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Retry() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, Policy{Attempts: 5, Initial: time.Hour}, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 1 {
		t.Errorf("Retry() = %v after %d calls, want error after 1", err, calls)
	}
}
