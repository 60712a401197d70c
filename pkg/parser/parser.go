// Package parser streams events out of process mining log files
// (XES, CSV, XLSX, JSONL).
package parser

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/logflow/conformflow/internal/model"
)

// Parser defines the interface for parsing process mining data.
// Implementations must not retain references to the output channel
// after returning.
type Parser interface {
	// Parse reads from r and sends parsed events to out.
	// It should respect context cancellation.
	// The caller is responsible for closing the out channel.
	// A case without events is sent as one event with CaseOnly set.
	Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error
}

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXES
	FormatJSONL
	FormatXLSX
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXES:
		return "xes"
	case FormatJSONL:
		return "jsonl"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// Ordered reports whether the format carries an intrinsic event order
// inside each case.
func (f Format) Ordered() bool {
	return f == FormatXES
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV
	case "xes":
		return FormatXES
	case "jsonl", "ndjson", "json":
		return FormatJSONL
	case "xlsx", "excel":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// DetectFormat guesses the format from a file name. A trailing .gz is
// ignored.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ParseFormat(ext)
}

// IsCompressed reports whether the path names a gzip file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Config holds common parser configuration.
type Config struct {
	// BufferSize is the size of the read buffer in bytes.
	BufferSize int

	// CaseIDColumn is the name of the case ID column (CSV, XLSX, JSONL key).
	CaseIDColumn string

	// ActivityColumn is the name of the activity column.
	ActivityColumn string

	// TimestampColumn is the name of the timestamp column.
	TimestampColumn string

	// ResourceColumn is the name of the resource column. Optional.
	ResourceColumn string

	// TimestampFormat is an extra Go time layout tried before the built-in ones.
	TimestampFormat string

	// Delimiter is the field delimiter for CSV (default: comma).
	Delimiter byte
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:      64 * 1024,
		CaseIDColumn:    model.KeyCaseName,
		ActivityColumn:  model.KeyConceptName,
		TimestampColumn: model.KeyTimestamp,
		ResourceColumn:  model.KeyResource,
		Delimiter:       ',',
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.CaseIDColumn == "" {
		c.CaseIDColumn = d.CaseIDColumn
	}
	if c.ActivityColumn == "" {
		c.ActivityColumn = d.ActivityColumn
	}
	if c.TimestampColumn == "" {
		c.TimestampColumn = d.TimestampColumn
	}
	if c.Delimiter == 0 {
		c.Delimiter = d.Delimiter
	}
	return c
}

// NewParser creates a parser for the given format.
func NewParser(format Format, cfg Config) (Parser, error) {
	cfg = cfg.withDefaults()
	switch format {
	case FormatCSV:
		return NewCSVParser(cfg), nil
	case FormatXES:
		return NewXESParser(cfg), nil
	case FormatJSONL:
		return NewJSONLParser(cfg), nil
	case FormatXLSX:
		return NewXLSXParser(cfg), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// emit sends ev unless the context is done first.
func emit(ctx context.Context, out chan<- *model.Event, ev *model.Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ErrContextCanceled
	}
}
