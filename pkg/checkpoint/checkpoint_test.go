package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/logflow/conformflow/pkg/resilience"
)

func TestRunID_Deterministic(t *testing.T) {
	a := RunID("synthetic_data/7/10%/baseline_heuristic_1_false")
	b := RunID("synthetic_data/7/10%/baseline_heuristic_1_false")
	c := RunID("synthetic_data/9/10%/baseline_heuristic_1_false")
	if a != b {
		t.Errorf("RunID() = %q then %q, want equal", a, b)
	}
	if a == c {
		t.Errorf("RunID() of different keys = %q for both", a)
	}
	if len(a) != 36 {
		t.Errorf("RunID() = %q, want a UUID", a)
	}
}

func TestCheckpoint_Phases(t *testing.T) {
	cp := New("k")
	if cp.Complete() || cp.CompletedAt != nil {
		t.Fatalf("New() = %+v, want running", cp)
	}
	cp.Fail(errors.New("boom"))
	if cp.Phase != PhaseFailed || cp.Error != "boom" {
		t.Errorf("Fail() = %s/%q, want failed/boom", cp.Phase, cp.Error)
	}
	cp.SetPhase(PhaseComplete)
	if !cp.Complete() || cp.CompletedAt == nil {
		t.Errorf("SetPhase(complete) = %+v", cp)
	}
	if cp.Duration() < 0 {
		t.Errorf("Duration() = %v, want >= 0", cp.Duration())
	}
}

func newRedis(t *testing.T) Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(DefaultRedisConfig(mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisBackend() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newLocal(t *testing.T) Backend {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBackends(t *testing.T) {
	backends := map[string]func(*testing.T) Backend{
		"local": newLocal,
		"redis": newRedis,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t)
			if b.Name() != name {
				t.Errorf("Name() = %q, want %q", b.Name(), name)
			}

			for i := 0; i < 3; i++ {
				cp := New(fmt.Sprintf("ds/%d", i))
				cp.SetMetadata("tier", "10%")
				if i == 1 {
					cp.SetPhase(PhaseComplete)
				}
				if err := b.Save(ctx, cp); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}
			other := New("other/0")
			if err := b.Save(ctx, other); err != nil {
				t.Fatal(err)
			}

			got, err := b.Load(ctx, RunID("ds/1"))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !got.Complete() || got.Metadata["tier"] != "10%" {
				t.Errorf("Load() = %+v", got)
			}

			list, err := b.List(ctx, "ds/")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 3 || list[0].RunKey != "ds/0" || list[2].RunKey != "ds/2" {
				t.Errorf("List(ds/) = %d checkpoints, want ds/0..ds/2", len(list))
			}

			inc, err := b.ListIncomplete(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(inc) != 3 {
				t.Errorf("ListIncomplete() = %d checkpoints, want 3", len(inc))
			}

			if err := b.Delete(ctx, other.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := b.Load(ctx, other.ID); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Load(deleted) error = %v, want %v", err, os.ErrNotExist)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Options{Kind: "none"})
	if err != nil || b != nil {
		t.Errorf("Open(none) = %v, %v, want nil, nil", b, err)
	}
	b, err = Open(ctx, Options{Kind: "local", Dir: t.TempDir()})
	if err != nil || b.Name() != "local" {
		t.Errorf("Open(local) = %v, %v", b, err)
	}
	if _, err := Open(ctx, Options{Kind: "etcd"}); err == nil {
		t.Error("Open(etcd) succeeded, want error")
	}
}

// flakyBackend fails Save a fixed number of times.
type flakyBackend struct {
	*LocalBackend
	failures int
	saves    int
}

func (f *flakyBackend) Save(ctx context.Context, cp *Checkpoint) error {
	f.saves++
	if f.saves <= f.failures {
		return errors.New("connection reset")
	}
	return f.LocalBackend.Save(ctx, cp)
}

func (f *flakyBackend) Name() string { return "flaky" }

func TestGuardedBackend(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	policy := resilience.Policy{Attempts: 3, Initial: time.Millisecond, Multiplier: 2}

	flaky := &flakyBackend{LocalBackend: local, failures: 2}
	g := NewGuardedBackend(flaky, policy, nil)
	cp := New("synthetic_data/7/10%/baseline_heuristic_1_false")
	if err := g.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if flaky.saves != 3 {
		t.Errorf("saves = %d, want 3", flaky.saves)
	}

	// Missing checkpoints are not retried and never trip the breaker.
	breaker := resilience.NewCircuitBreaker().WithMaxFailures(1)
	g = NewGuardedBackend(local, policy, breaker)
	for i := 0; i < 3; i++ {
		if _, err := g.Load(ctx, "absent"); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("Load(absent) error = %v, want %v", err, os.ErrNotExist)
		}
	}
	if g.State() != resilience.CircuitClosed {
		t.Errorf("State() = %v, want closed", g.State())
	}

	down := &flakyBackend{LocalBackend: local, failures: 100}
	g = NewGuardedBackend(down, policy, resilience.NewCircuitBreaker().WithMaxFailures(2).WithCooldown(time.Hour))
	if err := g.Save(ctx, cp); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Save() on a dead backend = %v, want %v", err, resilience.ErrCircuitOpen)
	}
	if down.saves != 2 {
		t.Errorf("saves = %d, want 2 before the breaker opened", down.saves)
	}
}

func TestOpen_RedisIsGuarded(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := Open(context.Background(), Options{Kind: "redis", Redis: DefaultRedisConfig(mr.Addr())})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	g, ok := b.(*GuardedBackend)
	if !ok || g.Name() != "redis" {
		t.Fatalf("Open(redis) = %T", b)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
