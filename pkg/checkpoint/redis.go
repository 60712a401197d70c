package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all checkpoint keys (e.g., "conformflow:runs:")
	Prefix string

	// TTL is the time-to-live for checkpoint keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "conformflow:runs:",
		TTL:      7 * 24 * time.Hour,
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisBackend stores checkpoints in Redis. Incomplete runs are also
// indexed in a set so resume does not need a key scan.
type RedisBackend struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisBackend creates a new Redis checkpoint backend and pings it.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{cfg: cfg, client: client}, nil
}

func (b *RedisBackend) key(id string) string {
	return b.cfg.Prefix + id
}

func (b *RedisBackend) incompleteSetKey() string {
	return b.cfg.Prefix + "index:incomplete"
}

// Save persists a checkpoint and updates the incomplete index in one
// pipeline.
func (b *RedisBackend) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.key(cp.ID), data, b.cfg.TTL)
	if cp.Complete() {
		pipe.SRem(ctx, b.incompleteSetKey(), cp.ID)
	} else {
		pipe.SAdd(ctx, b.incompleteSetKey(), cp.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to Redis: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint from Redis.
func (b *RedisBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("checkpoint %s: %w", id, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to load checkpoint from Redis: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a checkpoint from Redis.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	pipe := b.client.Pipeline()
	pipe.Del(ctx, b.key(id))
	pipe.SRem(ctx, b.incompleteSetKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all checkpoints whose run key has the given prefix.
func (b *RedisBackend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.cfg.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, b.cfg.Prefix+"index:") {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	var checkpoints []*Checkpoint
	for _, key := range keys {
		cp, err := b.Load(ctx, strings.TrimPrefix(key, b.cfg.Prefix))
		if err != nil {
			continue // Skip invalid checkpoints
		}
		if strings.HasPrefix(cp.RunKey, prefix) {
			checkpoints = append(checkpoints, cp)
		}
	}
	sortByRunKey(checkpoints)
	return checkpoints, nil
}

// ListIncomplete returns incomplete checkpoints from the index, pruning
// stale and completed entries.
func (b *RedisBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	ids, err := b.client.SMembers(ctx, b.incompleteSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get incomplete checkpoints: %w", err)
	}

	var checkpoints []*Checkpoint
	for _, id := range ids {
		cp, err := b.Load(ctx, id)
		if err != nil || cp.Complete() {
			b.client.SRem(ctx, b.incompleteSetKey(), id)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	sortByRunKey(checkpoints)
	return checkpoints, nil
}

// Name returns "redis".
func (b *RedisBackend) Name() string {
	return "redis"
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
