// Package columnar implements the CLMN binary columnar file format: a fixed
// header, one schema entry per column, and one independently zlib-compressed
// block per column.
//
// # File Layout
//
// All integers are big-endian.
//
//	fixed header (18 bytes)
//	  magic        u32   0x434C4D4E ("CLMN")
//	  version      u16   1
//	  column count u32
//	  row count    u64
//	schema entry (19 + L bytes, one per column)
//	  name length  u16   L
//	  name         L bytes of UTF-8
//	  type code    u8
//	  uncompressed u32
//	  compressed   u32
//	  offset       u64
//	column blocks, contiguous, starting right after the last schema entry
//
// Block i starts at offset[i] and the first block starts at the header size,
// so offset[i] = offset[i-1] + compressed[i-1].
//
// # Column Types
//
//	code  type     encoding of one value
//	0x00  INT32    4 bytes two's complement
//	0x01  INT64    8 bytes two's complement
//	0x02  FLOAT64  8 bytes IEEE-754
//	0x03  STRING   u16 byte length + UTF-8 bytes
//
// Column types are inferred from the first value of each column unless they
// are declared. Inference samples a single value and never widens, so a
// column whose first value is "1" and a later value is "1.5" fails to encode.
// Declare the type when the first row is not representative.
//
// # Writing
//
//	table := columnar.NewTable()
//	table.Add("id", []string{"1", "2"})
//	table.Add("name", []string{"Alice", "Bob"})
//
//	w := columnar.NewWriter(nil, logger)
//	header, err := w.WriteFile(ctx, "people.clmn", table)
//
// # Reading
//
// The reader parses the header with exact positioned reads and then fetches
// only the blocks of the requested columns:
//
//	r, err := columnar.Open("people.clmn", nil, logger)
//	defer r.Close()
//	table, err := r.ReadColumns(ctx, []string{"name"})
package columnar
