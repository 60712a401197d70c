package pool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkers(t *testing.T) {
	tests := []struct {
		jobs, n, want int
	}{
		{4, 10, 4},
		{12, 3, 3},
		{0, 1000, runtime.NumCPU()},
		{-1, 0, runtime.NumCPU()},
		{1, 1, 1},
	}
	for _, tt := range tests {
		if got := Workers(tt.jobs, tt.n); got != tt.want {
			t.Errorf("Workers(%d, %d) = %d, want %d", tt.jobs, tt.n, got, tt.want)
		}
	}
}

func TestMapPreservesOrder(t *testing.T) {
	const n = 200
	out := make([]int, n)
	err := Map(context.Background(), 8, n, func(ctx context.Context, i int) error {
		if i%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var running, peak int32
	err := Map(context.Background(), 3, 50, func(ctx context.Context, i int) error {
		cur := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(200 * time.Microsecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestMapFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Map(context.Background(), 2, 100, func(ctx context.Context, i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Map() error = %v, want %v", err, boom)
	}
}

func TestMapCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := Map(ctx, 2, 10, func(ctx context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Map() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestMapEmpty(t *testing.T) {
	if err := Map(context.Background(), 4, 0, func(ctx context.Context, i int) error {
		t.Fatal("fn called for empty input")
		return nil
	}); err != nil {
		t.Errorf("Map() error = %v, want nil", err)
	}
}
