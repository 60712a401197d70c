package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWatcher_DebouncedChange(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "log.xes")
	other := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(watched, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(Options{Debounce: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(watched); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, path string) error {
			changes <- path
			return nil
		})
	}()

	// Give the watcher a moment to start reading events.
	time.Sleep(50 * time.Millisecond)
	for _, content := range []string{"ab", "abc", "abcd"} {
		if err := os.WriteFile(watched, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	want, _ := filepath.Abs(watched)
	select {
	case got := <-changes:
		if got != want {
			t.Errorf("changed path = %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case got := <-changes:
		t.Errorf("unexpected second change %s", got)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	w, err := NewWatcher(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Watch(missing) succeeded, want error")
	}
}
