package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/logflow/conformflow/pkg/resilience"
)

// Backend defines the interface for checkpoint storage backends.
type Backend interface {
	// Save persists a checkpoint to the backend.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID. A missing checkpoint yields an
	// error matching os.ErrNotExist.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Delete removes a checkpoint.
	Delete(ctx context.Context, id string) error

	// List returns all checkpoints whose run key starts with prefix.
	List(ctx context.Context, prefix string) ([]*Checkpoint, error)

	// ListIncomplete returns all checkpoints that haven't completed.
	ListIncomplete(ctx context.Context) ([]*Checkpoint, error)

	// Name returns the backend name for logging.
	Name() string
}

// Options selects and configures a backend.
type Options struct {
	// Kind is none, local, redis or s3.
	Kind  string
	Dir   string
	Redis RedisConfig
	S3    S3Config

	// Retry applies to the remote backends. Zero attempts uses
	// resilience.DefaultPolicy.
	Retry resilience.Policy
}

// Open builds the backend named by opts.Kind. Kind "none" (or empty)
// returns a nil backend and no error. Redis and S3 backends come wrapped
// in a GuardedBackend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(opts.Kind) {
	case "", "none":
		return nil, nil
	case "local":
		b, err = NewLocalBackend(opts.Dir)
	case "redis":
		b, err = NewRedisBackend(opts.Redis)
	case "s3":
		b, err = NewS3Backend(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	if b.Name() == "local" {
		return b, nil
	}
	policy := opts.Retry
	if policy.Attempts == 0 {
		policy = resilience.DefaultPolicy()
	}
	return NewGuardedBackend(b, policy, nil), nil
}

// LocalBackend stores one JSON file per checkpoint in a directory.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates a backend using the local filesystem.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) path(id string) string {
	return filepath.Join(b.dir, id+".checkpoint")
}

// Save writes the checkpoint to a temp file and renames it into place.
func (b *LocalBackend) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := b.path(cp.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Load retrieves a checkpoint from the local filesystem.
func (b *LocalBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a checkpoint from the local filesystem.
func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	return os.Remove(b.path(id))
}

// List returns all checkpoints whose run key has the given prefix, ordered
// by run key.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	var checkpoints []*Checkpoint
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".checkpoint" {
			continue
		}
		cp, err := b.Load(ctx, strings.TrimSuffix(entry.Name(), ".checkpoint"))
		if err != nil {
			continue // Skip unreadable checkpoints
		}
		if strings.HasPrefix(cp.RunKey, prefix) {
			checkpoints = append(checkpoints, cp)
		}
	}
	sortByRunKey(checkpoints)
	return checkpoints, nil
}

// ListIncomplete returns all incomplete checkpoints.
func (b *LocalBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return incomplete(all), nil
}

// Name returns "local".
func (b *LocalBackend) Name() string {
	return "local"
}

func incomplete(all []*Checkpoint) []*Checkpoint {
	var out []*Checkpoint
	for _, cp := range all {
		if !cp.Complete() {
			out = append(out, cp)
		}
	}
	return out
}

func sortByRunKey(cps []*Checkpoint) {
	sort.Slice(cps, func(i, j int) bool { return cps[i].RunKey < cps[j].RunKey })
}
