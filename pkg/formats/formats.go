// Package formats exports decoded CLMN columns to other file formats and
// reads the binary ones back. Every encoder receives typed columns, so the
// exported files keep the INT32, INT64, FLOAT64 and STRING types of the
// source rather than re-parsing text.
package formats

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
)

// Format represents an export format
type Format string

const (
	// CSV is comma-separated text with a header row
	CSV Format = "csv"
	// JSONL is one JSON object per row
	JSONL Format = "jsonl"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
)

// AllFormats lists every supported format.
var AllFormats = []Format{CSV, JSONL, Arrow, Parquet, Avro}

// Encoder writes columns in one format.
type Encoder interface {
	// Encode writes all columns, which must have equal lengths
	Encode(w io.Writer, cols []*columnar.Column) error
	// Format returns the format written
	Format() Format
}

// Decoder reads a file written by the matching Encoder back into columns.
type Decoder interface {
	Decode(r io.Reader) ([]*columnar.Column, error)
	Format() Format
}

// EncoderConfig configures encoders.
type EncoderConfig struct {
	Format Format
	// Compression is the format-internal codec: snappy, zstd, gzip or none
	// for Parquet; deflate, snappy or null for Avro; zstd, lz4 or none for
	// Arrow. Ignored by CSV and JSONL.
	Compression string
	// CSVDelimiter is the CSV field separator
	CSVDelimiter rune
	// RowGroupSize bounds Parquet row groups
	RowGroupSize int64
	// BatchSize bounds Arrow record batches and Avro append blocks
	BatchSize int
}

// DefaultEncoderConfig returns the default configuration for format.
func DefaultEncoderConfig(format Format) *EncoderConfig {
	cfg := &EncoderConfig{
		Format:       format,
		CSVDelimiter: ',',
		RowGroupSize: 1 << 20,
		BatchSize:    64 * 1024,
	}
	switch format {
	case Parquet:
		cfg.Compression = "snappy"
	case Avro:
		cfg.Compression = "deflate"
	case Arrow:
		cfg.Compression = "none"
	}
	return cfg
}

// NewEncoder creates an encoder. A nil config selects CSV.
func NewEncoder(config *EncoderConfig) (Encoder, error) {
	if config == nil {
		config = DefaultEncoderConfig(CSV)
	}
	switch config.Format {
	case CSV:
		return newCSVEncoder(config), nil
	case JSONL:
		return &jsonlEncoder{}, nil
	case Arrow:
		return newArrowEncoder(config)
	case Parquet:
		return newParquetEncoder(config)
	case Avro:
		return newAvroEncoder(config)
	default:
		return nil, unsupported(config.Format)
	}
}

// NewDecoder creates a decoder for a binary format.
func NewDecoder(format Format) (Decoder, error) {
	switch format {
	case Arrow:
		return arrowDecoder{}, nil
	case Parquet:
		return parquetDecoder{}, nil
	case Avro:
		return avroDecoder{}, nil
	default:
		return nil, unsupported(format)
	}
}

// ParseFormat converts a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case CSV, JSONL, Arrow, Parquet, Avro:
		return f, nil
	case "ndjson":
		return JSONL, nil
	case "ipc", "feather":
		return Arrow, nil
	default:
		return "", unsupported(f)
	}
}

// DetectFormat returns the format implied by the extension of path, ignoring
// a trailing stream compression extension. Unknown extensions map to CSV.
func DetectFormat(path string) Format {
	if compression.DetectAlgorithm(path) != compression.None {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return JSONL
	case ".arrow", ".ipc", ".feather":
		return Arrow
	case ".parquet", ".pq":
		return Parquet
	case ".avro":
		return Avro
	default:
		return CSV
	}
}

// FormatInfo provides information about a format
type FormatInfo struct {
	Format           Format
	Name             string
	Description      string
	FileExtension    string
	MIMEType         string
	Columnar         bool
	SupportsCompress bool
	Decodable        bool
}

// GetFormatInfo returns information about a format, or nil.
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case CSV:
		return &FormatInfo{
			Format:           CSV,
			Name:             "CSV",
			Description:      "Comma-separated text with a header row",
			FileExtension:    ".csv",
			MIMEType:         "text/csv",
			SupportsCompress: true,
		}
	case JSONL:
		return &FormatInfo{
			Format:           JSONL,
			Name:             "JSON Lines",
			Description:      "One JSON object per row, keys in column order",
			FileExtension:    ".jsonl",
			MIMEType:         "application/jsonl",
			SupportsCompress: true,
		}
	case Arrow:
		return &FormatInfo{
			Format:           Arrow,
			Name:             "Apache Arrow",
			Description:      "In-memory columnar format, IPC file encoding",
			FileExtension:    ".arrow",
			MIMEType:         "application/vnd.apache.arrow.file",
			Columnar:         true,
			SupportsCompress: true,
			Decodable:        true,
		}
	case Parquet:
		return &FormatInfo{
			Format:           Parquet,
			Name:             "Apache Parquet",
			Description:      "Columnar storage format optimized for analytics",
			FileExtension:    ".parquet",
			MIMEType:         "application/vnd.apache.parquet",
			Columnar:         true,
			SupportsCompress: true,
			Decodable:        true,
		}
	case Avro:
		return &FormatInfo{
			Format:           Avro,
			Name:             "Apache Avro",
			Description:      "Row-oriented object container file",
			FileExtension:    ".avro",
			MIMEType:         "application/avro",
			SupportsCompress: true,
			Decodable:        true,
		}
	default:
		return nil
	}
}

func unsupported(f Format) *clmnerrors.Error {
	return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "unsupported format: %s", f).
		WithDetail("format", string(f))
}

// rowCount checks that all columns have the same length.
func rowCount(cols []*columnar.Column) (int, error) {
	if len(cols) == 0 {
		return 0, clmnerrors.New(clmnerrors.ErrorTypeValidation, "at least one column is required")
	}
	n := cols[0].Len()
	for _, c := range cols[1:] {
		if c.Len() != n {
			return 0, clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "column %q has %d values, expected %d", c.Name, c.Len(), n).
				WithDetail("column", c.Name)
		}
	}
	return n, nil
}

// writerOnly hides Close from encoders that close their sink.
type writerOnly struct {
	io.Writer
}

func encodeError(err error, f Format) *clmnerrors.Error {
	return clmnerrors.Wrapf(err, clmnerrors.ErrorTypeFile, "failed to write %s", f).
		WithDetail("format", string(f))
}

func decodeError(err error, f Format) *clmnerrors.Error {
	return clmnerrors.Wrapf(err, clmnerrors.ErrorTypeCorruptData, "failed to read %s", f).
		WithDetail("format", string(f))
}
