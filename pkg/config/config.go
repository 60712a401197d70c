// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < --config file < env < flags.
// Flags are applied by the caller after Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/logflow/conformflow/pkg/checkpoint"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/experiment"
	"github.com/logflow/conformflow/pkg/telemetry"
	"github.com/logflow/conformflow/pkg/writer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONFORMFLOW_"

// Config holds all conformflow configuration.
type Config struct {
	Version int `yaml:"version"`

	Logging     LoggingConfig     `yaml:"logging"`
	Conformance ConformanceConfig `yaml:"conformance"`
	Experiment  ExperimentConfig  `yaml:"experiment"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Output      OutputConfig      `yaml:"output"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// ConformanceConfig controls the checker.
type ConformanceConfig struct {
	Jobs       int    `yaml:"jobs" validate:"gte=0"`     // 0 = GOMAXPROCS
	Acceptance string `yaml:"acceptance" validate:"oneof=end visit"`
}

// ExperimentConfig controls the experiment matrix.
type ExperimentConfig struct {
	DataDir        string    `yaml:"data_dir"`
	ModelsDir      string    `yaml:"models_dir"`
	Output         string    `yaml:"output"`
	Results        string    `yaml:"results"`
	Seed           int64     `yaml:"seed"`
	Epochs         int       `yaml:"epochs" validate:"gte=1"`
	Split          []float64 `yaml:"split"`
	Model          string    `yaml:"predictive_model"`
	Target         string    `yaml:"target"`
	Padding        bool      `yaml:"padding"`
	LabelAttribute string    `yaml:"label_attribute"`
	TotalCFs       int       `yaml:"total_cfs" validate:"gte=0"`
	Datasets       []string  `yaml:"datasets,omitempty"`
}

// CheckpointConfig selects the run-resume backend.
type CheckpointConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=none local redis s3"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
	S3      S3Config    `yaml:"s3"`
}

// RedisConfig for the Redis checkpoint backend.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// S3Config for the S3 checkpoint backend.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// TelemetryConfig for OTLP trace export.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio" validate:"gte=0,lte=1"`
}

// OutputConfig controls result files.
type OutputConfig struct {
	Compression string `yaml:"compression" validate:"oneof=none snappy gzip zstd lz4"`
	BatchSize   int    `yaml:"batch_size" validate:"gte=0"`
	DuckDB      string `yaml:"duckdb"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	exp := experiment.DefaultSettings()

	return &Config{
		Version: 1,
		Logging: LoggingConfig{
			Level: "info",
		},
		Conformance: ConformanceConfig{
			Jobs:       exp.Jobs,
			Acceptance: exp.Acceptance,
		},
		Experiment: ExperimentConfig{
			DataDir:        "data",
			ModelsDir:      exp.ModelsDir,
			Output:         exp.Output,
			Results:        exp.Results,
			Seed:           exp.Seed,
			Epochs:         exp.Epochs,
			Split:          exp.Split,
			Model:          exp.Model,
			Target:         exp.Target,
			Padding:        exp.Padding,
			LabelAttribute: exp.LabelAttribute,
			TotalCFs:       exp.TotalCFs,
		},
		Checkpoint: CheckpointConfig{
			Backend: "local",
			Dir:     filepath.Join(homeDir, ".conformflow", "checkpoints"),
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "conformflow:runs:",
				TTL:     7 * 24 * time.Hour,
			},
			S3: S3Config{
				Prefix: "conformflow/runs/",
			},
		},
		Telemetry: TelemetryConfig{
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
		Output: OutputConfig{
			Compression: "snappy",
			BatchSize:   writer.DefaultConfig().BatchSize,
		},
	}
}

var validate = validator.New()

// Validate checks enumerations and ranges. All violations are reported.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		var multi cferrors.MultiError
		for _, fe := range verrs {
			multi.Add(cferrors.New(cferrors.CodeInvalidEnum, "invalid configuration").
				WithContext("field", fe.Namespace()).
				WithContext("rule", fe.Tag()).
				WithContext("value", fe.Value()))
		}
		return multi.Combined()
	}
	return nil
}

// ExperimentSettings maps the configuration onto driver settings.
func (c *Config) ExperimentSettings() experiment.Settings {
	s := experiment.DefaultSettings()
	e := c.Experiment
	s.Output = e.Output
	s.Results = e.Results
	s.ModelsDir = e.ModelsDir
	s.Seed = e.Seed
	s.Epochs = e.Epochs
	s.Split = e.Split
	s.Padding = e.Padding
	s.Jobs = c.Conformance.Jobs
	s.Acceptance = c.Conformance.Acceptance
	s.TotalCFs = e.TotalCFs
	if e.Model != "" {
		s.Model = e.Model
	}
	if e.Target != "" {
		s.Target = e.Target
	}
	if e.LabelAttribute != "" {
		s.LabelAttribute = e.LabelAttribute
	}
	return s
}

// CheckpointOptions maps the configuration onto backend options.
func (c *Config) CheckpointOptions() checkpoint.Options {
	redis := checkpoint.DefaultRedisConfig(c.Checkpoint.Redis.Address)
	redis.Password = c.Checkpoint.Redis.Password
	redis.Database = c.Checkpoint.Redis.Database
	if c.Checkpoint.Redis.Prefix != "" {
		redis.Prefix = c.Checkpoint.Redis.Prefix
	}
	redis.TTL = c.Checkpoint.Redis.TTL

	s3 := checkpoint.DefaultS3Config(c.Checkpoint.S3.Bucket)
	if c.Checkpoint.S3.Prefix != "" {
		s3.Prefix = c.Checkpoint.S3.Prefix
	}
	s3.Region = c.Checkpoint.S3.Region
	s3.Endpoint = c.Checkpoint.S3.Endpoint
	s3.UsePathStyle = c.Checkpoint.S3.UsePathStyle

	return checkpoint.Options{
		Kind:  c.Checkpoint.Backend,
		Dir:   c.Checkpoint.Dir,
		Redis: redis,
		S3:    s3,
	}
}

// TelemetryConfig maps the configuration onto exporter settings.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	t := telemetry.DefaultConfig("conformflow")
	t.ServiceVersion = version
	t.Enabled = c.Telemetry.Enabled
	t.Endpoint = c.Telemetry.Endpoint
	t.Insecure = c.Telemetry.Insecure
	t.SamplingRatio = c.Telemetry.SamplingRatio
	return t
}

// WriterConfig maps the configuration onto result-file settings.
func (c *Config) WriterConfig() writer.Config {
	return writer.Config{
		BatchSize:   c.Output.BatchSize,
		Compression: writer.ParseCompression(c.Output.Compression),
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // paths that were loaded

	search []string
	getenv func(string) (string, bool)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearchPaths replaces the system, user and project config locations.
func WithSearchPaths(paths ...string) Option {
	return func(m *Manager) { m.search = paths }
}

// WithEnv replaces the environment lookup.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(m *Manager) { m.getenv = lookup }
}

// NewManager creates a new configuration manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		config: Default(),
		search: defaultPaths(),
		getenv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// defaultPaths returns config file paths in priority order.
func defaultPaths() []string {
	var paths []string
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/conformflow/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".conformflow", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".conformflow.yaml"))
	}
	return paths
}

// Load rebuilds the configuration from all sources. Missing search-path
// files are skipped; a missing explicit file is an error.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.search {
		if err := m.loadFile(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		m.paths = append(m.paths, path)
	}
	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return cferrors.FileNotFound(explicit, err)
			}
			return err
		}
		m.paths = append(m.paths, explicit)
	}

	if err := m.loadEnv(); err != nil {
		return err
	}
	return m.config.Validate()
}

// loadFile decodes path over the current configuration. Keys absent from
// the file keep their value; lists are replaced whole.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, m.config); err != nil {
		return cferrors.Wrap(err, cferrors.CodeInvalidFormat, "invalid config file").
			WithContext("path", path)
	}
	return nil
}

// loadEnv applies CONFORMFLOW_* overrides.
func (m *Manager) loadEnv() error {
	c := m.config
	str := map[string]*string{
		"LOG_LEVEL":          &c.Logging.Level,
		"ACCEPTANCE":         &c.Conformance.Acceptance,
		"DATA_DIR":           &c.Experiment.DataDir,
		"MODELS_DIR":         &c.Experiment.ModelsDir,
		"OUTPUT":             &c.Experiment.Output,
		"RESULTS":            &c.Experiment.Results,
		"CHECKPOINT_BACKEND": &c.Checkpoint.Backend,
		"CHECKPOINT_DIR":     &c.Checkpoint.Dir,
		"REDIS_ADDR":         &c.Checkpoint.Redis.Address,
		"REDIS_PASSWORD":     &c.Checkpoint.Redis.Password,
		"S3_BUCKET":          &c.Checkpoint.S3.Bucket,
		"S3_REGION":          &c.Checkpoint.S3.Region,
		"S3_ENDPOINT":        &c.Checkpoint.S3.Endpoint,
		"OTLP_ENDPOINT":      &c.Telemetry.Endpoint,
		"COMPRESSION":        &c.Output.Compression,
		"DUCKDB":             &c.Output.DuckDB,
	}
	for key, dst := range str {
		if v, ok := m.getenv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"JOBS":   &c.Conformance.Jobs,
		"EPOCHS": &c.Experiment.Epochs,
	}
	for key, dst := range ints {
		if v, ok := m.getenv(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(key, v, err)
			}
			*dst = n
		}
	}

	if v, ok := m.getenv(EnvPrefix + "SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError("SEED", v, err)
		}
		c.Experiment.Seed = n
	}
	if v, ok := m.getenv(EnvPrefix + "TELEMETRY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("TELEMETRY", v, err)
		}
		c.Telemetry.Enabled = b
	}
	if v, ok := m.getenv(EnvPrefix + "DATASETS"); ok && v != "" {
		c.Experiment.Datasets = strings.Split(v, ",")
	}
	return nil
}

func envError(key, value string, err error) error {
	return cferrors.Wrap(err, cferrors.CodeInvalidEnum, "invalid environment override").
		WithContext("var", EnvPrefix+key).
		WithContext("value", value)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Paths returns the files that were loaded, in order.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Save writes the current configuration to path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
