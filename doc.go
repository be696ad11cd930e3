// Package clmn converts CSV files into CLMN, a compressed columnar binary
// format, and back.
//
// A CLMN file stores every column as its own zlib-compressed block behind a
// self-describing header, so a reader can decode one column without touching
// the bytes of any other.
//
// # File Layout
//
// All integers are big-endian.
//
//	magic        u32   0x434C4D4E ("CLMN")
//	version      u16   1
//	column_count u32
//	row_count    u64
//	schema       column_count entries:
//	    name_len u16, name (UTF-8), type u8,
//	    uncompressed_size u32, compressed_size u32, offset u64
//	blocks       one compressed block per column, in schema order
//
// Column types are INT32 (0x00), INT64 (0x01), FLOAT64 (0x02) and STRING
// (0x03). Numeric values are fixed width; strings carry a u16 byte length
// prefix.
//
// # Quick Start
//
// Convert a CSV file and read one column back:
//
//	clmn csv_to_custom data.csv data.clmn
//	clmn read data.clmn --columns name --limit 5
//	clmn custom_to_csv data.clmn names.parquet --columns name
//	clmn inspect data.clmn --json
//
// From Go, use the columnar package directly:
//
//	table, err := csvio.ReadFile("data.csv", csvio.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	w := columnar.NewWriter(nil, logger)
//	if _, err := w.WriteFile(ctx, "data.clmn", table); err != nil {
//	    return err
//	}
//
//	r, err := columnar.Open("data.clmn", nil, logger)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	cols, err := r.ReadSelectedColumns(ctx, []string{"name"})
//
// # Packages
//
//   - pkg/columnar: the CLMN header, type inference, block codec, writer and
//     selective reader
//   - pkg/compression: zlib block compression and stream compression for CSV
//   - pkg/csvio: CSV parsing and writing
//   - pkg/formats: Arrow, Parquet, Avro and JSON lines export
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: configuration,
//     logging, Prometheus metrics and OpenTelemetry tracing
//   - internal/pipeline: the operations behind the clmn command
//
// # Configuration
//
// The clmn command reads an optional YAML file (--config) and CLMN_
// environment variables; see pkg/config for the keys.
package clmn
