package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the S3 checkpoint backend.
type S3Config struct {
	// Bucket is the S3 bucket for storing checkpoints
	Bucket string

	// Prefix is prepended to all checkpoint keys (e.g., "conformflow/runs/")
	Prefix string

	// Region is the AWS region
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool

	// Timeout for S3 operations
	Timeout time.Duration
}

// DefaultS3Config returns sensible defaults.
func DefaultS3Config(bucket string) S3Config {
	return S3Config{
		Bucket:  bucket,
		Prefix:  "conformflow/runs/",
		Timeout: 30 * time.Second,
	}
}

// S3Backend stores checkpoints as JSON objects in S3.
type S3Backend struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3Backend creates a new S3 checkpoint backend.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 checkpoint backend: bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{cfg: cfg, client: client}, nil
}

func (b *S3Backend) key(id string) string {
	return b.cfg.Prefix + id + ".json"
}

// Save persists a checkpoint to S3.
func (b *S3Backend) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.key(cp.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint to S3: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint from S3.
func (b *S3Backend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("checkpoint %s: %w", id, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to load checkpoint from S3: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint data: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a checkpoint from S3.
func (b *S3Backend) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(id)),
	})
	return err
}

// List returns all checkpoints whose run key has the given prefix. Object
// keys are run IDs, so every object is loaded and filtered.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	var checkpoints []*Checkpoint
	var token *string
	for {
		output, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.cfg.Bucket),
			Prefix:            aws.String(b.cfg.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoints: %w", err)
		}

		for _, obj := range output.Contents {
			id := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(obj.Key), b.cfg.Prefix), ".json")
			cp, err := b.Load(ctx, id)
			if err != nil {
				continue // Skip invalid checkpoints
			}
			if strings.HasPrefix(cp.RunKey, prefix) {
				checkpoints = append(checkpoints, cp)
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		token = output.NextContinuationToken
	}
	sortByRunKey(checkpoints)
	return checkpoints, nil
}

// ListIncomplete returns all checkpoints that haven't completed.
func (b *S3Backend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return incomplete(all), nil
}

// Name returns "s3".
func (b *S3Backend) Name() string {
	return "s3"
}
