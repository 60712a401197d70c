// Package writer persists conformance results and prefix tables as Parquet,
// CSV and DuckDB rows.
package writer

import (
	"strings"

	"github.com/apache/arrow/go/v14/parquet/compress"
)

// Config holds writer configuration.
type Config struct {
	// BatchSize is the number of rows per record batch.
	BatchSize int

	// Compression type for Parquet output.
	Compression CompressionType
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   8192,
		Compression: CompressionSnappy,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	return c
}

// CompressionType represents Parquet compression options.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the compression type name.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ParseCompression parses a compression type string. Unknown names mean
// no compression.
func ParseCompression(s string) CompressionType {
	switch strings.ToLower(s) {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

func (c CompressionType) codec() compress.Compression {
	switch c {
	case CompressionSnappy:
		return compress.Codecs.Snappy
	case CompressionGzip:
		return compress.Codecs.Gzip
	case CompressionZstd:
		return compress.Codecs.Zstd
	case CompressionLZ4:
		return compress.Codecs.Lz4
	default:
		return compress.Codecs.Uncompressed
	}
}

// duckdbName is the codec name DuckDB's COPY statement expects.
func (c CompressionType) duckdbName() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionNone:
		return "uncompressed"
	default:
		return "snappy"
	}
}
