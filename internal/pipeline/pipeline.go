// Package pipeline orchestrates the clmn commands: CSV to CLMN encoding,
// CLMN decoding and export, selective column previews and header inspection.
// It wires configuration, CSV handling, the columnar core, metrics, tracing
// and logging together; the columnar package itself knows nothing about
// files other than CLMN.
//
// # Basic Usage
//
//	p, err := pipeline.New(config.Default(), metrics.NewCodecMetrics(), logger)
//	if err != nil {
//	    return err
//	}
//	result, err := p.Encode(ctx, "data.csv", "data.clmn")
package pipeline

import (
	"context"
	"os"
	"runtime"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/config"
	"github.com/ajitpratap0/clmn/pkg/csvio"
	"github.com/ajitpratap0/clmn/pkg/formats"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
)

// Pipeline runs conversions with one configuration. It holds no per-file
// state and may be used for several operations.
type Pipeline struct {
	config  *config.Config
	types   map[string]columnar.ColumnType
	metrics *metrics.CodecMetrics
	logger  *zap.Logger
}

// New validates cfg and creates a pipeline. A nil cfg selects
// config.Default; metrics and logger may be nil.
func New(cfg *config.Config, m *metrics.CodecMetrics, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	types, err := cfg.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:  cfg,
		types:   types,
		metrics: m,
		logger:  logger.With(zap.String("component", "pipeline")),
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config {
	return p.config
}

func (p *Pipeline) workers() int {
	if p.config.Performance.Workers > 0 {
		return p.config.Performance.Workers
	}
	return runtime.NumCPU()
}

func (p *Pipeline) writerConfig() *columnar.WriterConfig {
	return &columnar.WriterConfig{
		Block:   p.config.BlockConfig(),
		Workers: p.workers(),
		Types:   p.types,
		Metrics: p.metrics,
	}
}

func (p *Pipeline) readerConfig() *columnar.ReaderConfig {
	return &columnar.ReaderConfig{
		Block:   p.config.BlockConfig(),
		Workers: p.workers(),
		Metrics: p.metrics,
		Mmap:    p.config.Performance.Mmap,
	}
}

// csvOptions resolves the CSV settings for path.
func (p *Pipeline) csvOptions(path string) (csvio.Options, error) {
	alg, err := csvio.ResolveCompression(path, p.config.CSV.StreamCompression)
	if err != nil {
		return csvio.Options{}, err
	}
	return csvio.Options{
		Delimiter:   p.config.Delimiter(),
		TrimSpace:   p.config.CSV.TrimSpace,
		Compression: alg,
		Level:       compression.Level(p.config.CSV.StreamLevel),
	}, nil
}

func (p *Pipeline) open(ctx context.Context, path string) (*columnar.Reader, error) {
	_, span := observability.StartSpan(ctx, "pipeline.open")
	r, err := columnar.Open(path, p.readerConfig(), p.logger)
	span.SetAttribute("path", path)
	span.Finish(err)
	return r, err
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// fail records err against operation and returns it.
func (p *Pipeline) fail(operation string, err error) error {
	p.metrics.RecordError(operation, string(clmnerrors.TypeOf(err)))
	return err
}

// newEncoder builds the export encoder for format, taking the CSV delimiter
// from the configuration.
func (p *Pipeline) newEncoder(format formats.Format, compression string) (formats.Encoder, error) {
	cfg := formats.DefaultEncoderConfig(format)
	cfg.CSVDelimiter = p.config.Delimiter()
	if compression != "" {
		cfg.Compression = compression
	}
	return formats.NewEncoder(cfg)
}
