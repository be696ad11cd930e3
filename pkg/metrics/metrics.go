// Package metrics provides Prometheus instrumentation for the CLMN codec.
//
// # Overview
//
// CodecMetrics counts the columns, rows and bytes that pass through the
// writer and reader, and records per-column encode and decode latency. Each
// CodecMetrics owns its registry, so several instances (one per test, or one
// per CLI invocation) never collide.
//
// # Basic Usage
//
//	m := metrics.NewCodecMetrics()
//	writer := columnar.NewWriter(&columnar.WriterConfig{Metrics: m}, logger)
//	...
//	m.WriteText(os.Stderr)
//
// All methods are safe on a nil *CodecMetrics, which records nothing.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Operation labels.
const (
	OpEncode = "encode"
	OpDecode = "decode"
)

// CodecMetrics holds the Prometheus collectors for one codec session.
type CodecMetrics struct {
	registry *prometheus.Registry

	columns           *prometheus.CounterVec   // columns processed by operation and type
	rows              *prometheus.CounterVec   // rows processed by operation
	uncompressedBytes *prometheus.CounterVec   // encoded bytes before compression
	compressedBytes   *prometheus.CounterVec   // bytes stored in column blocks
	columnDuration    *prometheus.HistogramVec // per-column codec latency
	errors            *prometheus.CounterVec   // failures by operation and error type
	throughput        *prometheus.GaugeVec     // rows per second of the last run
}

// NewCodecMetrics creates a CodecMetrics with its own registry.
func NewCodecMetrics() *CodecMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &CodecMetrics{
		registry: reg,
		columns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmn_columns_total",
				Help: "Total number of columns encoded or decoded",
			},
			[]string{"operation", "type"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmn_rows_total",
				Help: "Total number of rows encoded or decoded",
			},
			[]string{"operation"},
		),
		uncompressedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmn_uncompressed_bytes_total",
				Help: "Total encoded column bytes before compression",
			},
			[]string{"operation"},
		),
		compressedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmn_compressed_bytes_total",
				Help: "Total compressed column block bytes",
			},
			[]string{"operation"},
		),
		columnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "clmn_column_duration_seconds",
				Help: "Time to encode and compress, or decompress and decode, one column",
				Buckets: []float64{
					1e-5, // 10μs - tiny columns
					1e-4, // 100μs
					1e-3, // 1ms
					1e-2, // 10ms
					1e-1, // 100ms
					1,    // 1s - very large columns
				},
			},
			[]string{"operation", "type"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clmn_errors_total",
				Help: "Total number of failed codec operations",
			},
			[]string{"operation", "error_type"},
		),
		throughput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clmn_throughput_rows_per_second",
				Help: "Rows per second of the most recent operation",
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the registry holding the codec collectors.
func (m *CodecMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveColumn records one column passing through the codec.
func (m *CodecMetrics) ObserveColumn(operation, columnType string, uncompressed, compressed int64, d time.Duration) {
	if m == nil {
		return
	}
	m.columns.WithLabelValues(operation, columnType).Inc()
	m.uncompressedBytes.WithLabelValues(operation).Add(float64(uncompressed))
	m.compressedBytes.WithLabelValues(operation).Add(float64(compressed))
	m.columnDuration.WithLabelValues(operation, columnType).Observe(d.Seconds())
}

// AddRows records rows processed by a whole-file operation.
func (m *CodecMetrics) AddRows(operation string, n int64) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(operation).Add(float64(n))
}

// RecordError counts a failed operation.
func (m *CodecMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(operation, errorType).Inc()
}

// SetThroughput publishes the row rate of a finished operation.
func (m *CodecMetrics) SetThroughput(operation string, rows int64, elapsed time.Duration) float64 {
	if m == nil || elapsed <= 0 {
		return 0
	}
	rate := float64(rows) / elapsed.Seconds()
	m.throughput.WithLabelValues(operation).Set(rate)
	return rate
}

// WriteText writes every collected metric in the Prometheus text exposition
// format.
func (m *CodecMetrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
//
// Example:
//
//	timer := metrics.NewTimer("encode")
//	encodeFile(table)
//	logger.Info("encoded", zap.Duration("elapsed", timer.Stop()))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
