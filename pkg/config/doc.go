// # Configuration File
//
// All sections are optional; missing keys keep their defaults.
//
//	compression:
//	  level: 6          # zlib level 1-9, 0 = zlib default
//	  chunk_size: 8192  # inflate buffer in bytes
//	performance:
//	  workers: 4        # 0 = one per CPU
//	  mmap: false       # memory-map CLMN files when reading
//	csv:
//	  delimiter: ","
//	  trim_space: true
//	  stream_compression: auto   # auto, none, gzip, zstd, lz4, s2, snappy
//	  stream_level: 5
//	logging:
//	  level: info
//	  encoding: console
//	observability:
//	  enable_metrics: false
//	  enable_tracing: false
//	types:
//	  zip_code: string  # keep leading zeros
//	  amount: float64
//
// # Environment
//
// ${VAR_NAME} references anywhere in the file are replaced with the value of
// the environment variable before parsing. Independently, every scalar key can
// be overridden with a CLMN_ prefixed variable named after its path:
//
//	CLMN_COMPRESSION_LEVEL=9
//	CLMN_PERFORMANCE_WORKERS=2
//	CLMN_LOGGING_LEVEL=debug
//
// Precedence, lowest first: defaults, file, CLMN_* environment, command-line
// flags (applied by the CLI).
package config
