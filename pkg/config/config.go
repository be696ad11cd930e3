// Package config holds the clmn configuration: block compression, worker
// counts, CSV handling, logging, observability and declared column types.
//
// Example usage:
//
//	cfg, err := config.Load("clmn.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	writer := columnar.NewWriter(&columnar.WriterConfig{Block: cfg.BlockConfig()}, nil)
package config

import (
	"runtime"
	"unicode/utf8"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
)

// Config is the top-level configuration.
type Config struct {
	// Compression controls the zlib codec applied to every column block
	Compression CompressionConfig `yaml:"compression" json:"compression" mapstructure:"compression"`

	// Performance controls parallel column encoding and decoding
	Performance PerformanceConfig `yaml:"performance" json:"performance" mapstructure:"performance"`

	// CSV controls how CSV input is parsed and output is written
	CSV CSVConfig `yaml:"csv" json:"csv" mapstructure:"csv"`

	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Types declares column types by name; undeclared columns are inferred
	// from their first value.
	Types map[string]string `yaml:"types,omitempty" json:"types,omitempty" mapstructure:"types"`
}

// CompressionConfig contains block compression settings.
type CompressionConfig struct {
	// Level is the zlib level (1-9); 0 selects the zlib default
	Level int `yaml:"level" json:"level" mapstructure:"level"`
	// ChunkSize is the inflate buffer size in bytes
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
}

// PerformanceConfig contains concurrency settings.
type PerformanceConfig struct {
	// Workers bounds the columns processed at once; 0 means one per CPU
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// Mmap reads CLMN files through a memory mapping
	Mmap bool `yaml:"mmap" json:"mmap" mapstructure:"mmap"`
}

// CSVConfig contains CSV settings.
type CSVConfig struct {
	// Delimiter is the single-character field separator
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// TrimSpace trims surrounding whitespace from every field
	TrimSpace bool `yaml:"trim_space" json:"trim_space" mapstructure:"trim_space"`
	// StreamCompression wraps CSV files in gzip, zstd, lz4, s2 or snappy;
	// "auto" picks by file extension
	StreamCompression string `yaml:"stream_compression" json:"stream_compression" mapstructure:"stream_compression"`
	// StreamLevel is the level used when writing compressed CSV (1-9)
	StreamLevel int `yaml:"stream_level" json:"stream_level" mapstructure:"stream_level"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// Encoding is json or console
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// EnableMetrics dumps codec metrics in Prometheus text format after each
	// command
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// EnableTracing writes OpenTelemetry spans to stderr
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// Default returns a configuration with production-ready defaults.
func Default() *Config {
	return &Config{
		Compression: CompressionConfig{
			Level:     0,
			ChunkSize: compression.DefaultChunkSize,
		},
		Performance: PerformanceConfig{
			Workers: runtime.NumCPU(),
		},
		CSV: CSVConfig{
			Delimiter:         ",",
			TrimSpace:         true,
			StreamCompression: "auto",
			StreamLevel:       int(compression.Default),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			TracingSampleRate: 1.0,
		},
		Types: map[string]string{},
	}
}

// Validate checks ranges and enumerations. It does not touch the filesystem.
func (c *Config) Validate() error {
	if c.Compression.Level < 0 || c.Compression.Level > 9 {
		return invalid("compression.level", c.Compression.Level, "must be between 0 and 9")
	}
	if c.Compression.ChunkSize <= 0 {
		return invalid("compression.chunk_size", c.Compression.ChunkSize, "must be positive")
	}
	if c.Performance.Workers < 0 {
		return invalid("performance.workers", c.Performance.Workers, "cannot be negative")
	}
	if utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		return invalid("csv.delimiter", c.CSV.Delimiter, "must be a single character")
	}
	if d, _ := utf8.DecodeRuneInString(c.CSV.Delimiter); d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError {
		return invalid("csv.delimiter", c.CSV.Delimiter, "is not a valid separator")
	}
	if _, _, err := compression.ParseAlgorithm(c.CSV.StreamCompression); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "invalid csv.stream_compression").
			WithDetail("field", "csv.stream_compression")
	}
	if c.CSV.StreamLevel < 1 || c.CSV.StreamLevel > 9 {
		return invalid("csv.stream_level", c.CSV.StreamLevel, "must be between 1 and 9")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return invalid("observability.tracing_sample_rate", r, "must be between 0 and 1")
	}
	if _, err := c.ColumnTypes(); err != nil {
		return err
	}
	return nil
}

// BlockConfig returns the block codec settings.
func (c *Config) BlockConfig() compression.BlockConfig {
	level := compression.Level(c.Compression.Level)
	if c.Compression.Level == 0 {
		level = compression.Default
	}
	return compression.BlockConfig{
		Level:     level,
		ChunkSize: c.Compression.ChunkSize,
	}
}

// Delimiter returns the CSV field separator.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSV.Delimiter)
	return r
}

// ColumnTypes parses the declared column types.
func (c *Config) ColumnTypes() (map[string]columnar.ColumnType, error) {
	types := make(map[string]columnar.ColumnType, len(c.Types))
	for name, value := range c.Types {
		t, err := columnar.ParseColumnType(value)
		if err != nil {
			return nil, clmnerrors.Wrapf(err, clmnerrors.ErrorTypeConfig, "invalid type for column %q", name).
				WithDetail("field", "types").
				WithDetail("column", name)
		}
		types[name] = t
	}
	return types, nil
}

func invalid(field string, value interface{}, reason string) *clmnerrors.Error {
	return clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "%s %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value)
}
