package columnar

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

// MaxBlockSize is the largest uncompressed or compressed block size a schema
// entry may record.
const MaxBlockSize = math.MaxInt32

// ColumnSchema describes one column of a CLMN file: its name, type, block
// sizes and the absolute offset of its block.
type ColumnSchema struct {
	name             string
	typ              ColumnType
	uncompressedSize uint32
	compressedSize   uint32
	offset           uint64
}

// NewColumnSchema creates a schema entry.
func NewColumnSchema(name string, t ColumnType, uncompressedSize, compressedSize uint32, offset uint64) ColumnSchema {
	return ColumnSchema{
		name:             name,
		typ:              t,
		uncompressedSize: uncompressedSize,
		compressedSize:   compressedSize,
		offset:           offset,
	}
}

func (s ColumnSchema) Name() string             { return s.name }
func (s ColumnSchema) Type() ColumnType         { return s.typ }
func (s ColumnSchema) UncompressedSize() uint32 { return s.uncompressedSize }
func (s ColumnSchema) CompressedSize() uint32   { return s.compressedSize }
func (s ColumnSchema) Offset() uint64           { return s.offset }

// End returns the offset one past the last byte of the block.
func (s ColumnSchema) End() uint64 {
	return s.offset + uint64(s.compressedSize)
}

// EntrySize returns the encoded size of this schema entry.
func (s ColumnSchema) EntrySize() int64 {
	return SchemaEntryFixedSize + int64(len(s.name))
}

// CompressionRatio returns compressed/uncompressed, or 1 for empty blocks.
func (s ColumnSchema) CompressionRatio() float64 {
	if s.uncompressedSize == 0 {
		return 1
	}
	return float64(s.compressedSize) / float64(s.uncompressedSize)
}

func (s ColumnSchema) String() string {
	return fmt.Sprintf("%s %s uncompressed=%d compressed=%d offset=%d",
		s.name, s.typ, s.uncompressedSize, s.compressedSize, s.offset)
}

// FileHeader is the parsed, validated header of a CLMN file. A FileHeader is
// immutable and always satisfies:
//   - at least one column
//   - non-empty, unique column names
//   - the first block starts at the header size
//   - blocks appear in schema order and never overlap
//   - every block size matches the row count for its type
type FileHeader struct {
	rowCount int64
	columns  []ColumnSchema
	index    map[string]int
}

// NewFileHeader validates columns against rowCount and builds a FileHeader.
// Violations are ErrorTypeSchema errors naming the column.
func NewFileHeader(rowCount int64, columns []ColumnSchema) (*FileHeader, error) {
	if rowCount < 0 {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "negative row count %d", rowCount)
	}
	if len(columns) == 0 {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeSchema, "header must contain at least one column")
	}

	h := &FileHeader{
		rowCount: rowCount,
		columns:  make([]ColumnSchema, len(columns)),
		index:    make(map[string]int, len(columns)),
	}
	copy(h.columns, columns)

	for i, c := range h.columns {
		if err := validateName(c.name); err != nil {
			return nil, err.WithDetail("index", i)
		}
		if prev, dup := h.index[c.name]; dup {
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "duplicate column name %q", c.name).
				WithDetail("column", c.name).
				WithDetail("index", i).
				WithDetail("first_index", prev)
		}
		h.index[c.name] = i
	}

	expected := uint64(h.Size())
	for i, c := range h.columns {
		if err := validateSizes(c, rowCount); err != nil {
			return nil, err
		}
		if i == 0 && c.offset != expected {
			return nil, schemaMismatch(c, "first column block must start at header end", "offset", expected, c.offset)
		}
		if c.offset < expected {
			return nil, schemaMismatch(c, "column block overlaps previous block", "offset", expected, c.offset)
		}
		expected = c.End()
	}

	return h, nil
}

func validateName(name string) *clmnerrors.Error {
	switch {
	case name == "":
		return clmnerrors.New(clmnerrors.ErrorTypeSchema, "column name must not be empty")
	case len(name) > MaxNameLength:
		return clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "column name of %d bytes exceeds maximum of %d", len(name), MaxNameLength)
	case !utf8.ValidString(name):
		return clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "column name %q is not valid UTF-8", name).
			WithDetail("column", name)
	}
	return nil
}

func validateSizes(c ColumnSchema, rowCount int64) *clmnerrors.Error {
	if !c.typ.Valid() {
		return clmnerrors.Wrap(invalidType(c.typ), clmnerrors.ErrorTypeSchema, "invalid column type").
			WithDetail("column", c.name)
	}
	if c.uncompressedSize > MaxBlockSize {
		return schemaMismatch(c, "uncompressed size exceeds maximum block size", "uncompressed_size", uint64(MaxBlockSize), uint64(c.uncompressedSize))
	}
	if c.compressedSize > MaxBlockSize {
		return schemaMismatch(c, "compressed size exceeds maximum block size", "compressed_size", uint64(MaxBlockSize), uint64(c.compressedSize))
	}
	// End must fit an int64 file offset.
	if limit := uint64(math.MaxInt64) - uint64(c.compressedSize); c.offset > limit {
		return schemaMismatch(c, "block extends past addressable range", "offset", limit, c.offset)
	}

	if w, ok := c.typ.FixedWidth(); ok {
		want := uint64(rowCount) * uint64(w)
		if rowCount > MaxBlockSize || uint64(c.uncompressedSize) != want {
			return schemaMismatch(c, fmt.Sprintf("uncompressed size does not match %d rows of %s", rowCount, c.typ), "uncompressed_size", want, uint64(c.uncompressedSize))
		}
		return nil
	}

	minimum := uint64(rowCount) * stringLengthSize
	if uint64(c.uncompressedSize) < minimum {
		return schemaMismatch(c, fmt.Sprintf("uncompressed size too small for %d string rows", rowCount), "uncompressed_size", minimum, uint64(c.uncompressedSize))
	}
	return nil
}

func schemaMismatch(c ColumnSchema, message, field string, expected, actual uint64) *clmnerrors.Error {
	return clmnerrors.New(clmnerrors.ErrorTypeSchema, message).
		WithDetail("column", c.name).
		WithDetail("field", field).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// RowCount returns the number of rows in every column.
func (h *FileHeader) RowCount() int64 {
	return h.rowCount
}

// ColumnCount returns the number of columns.
func (h *FileHeader) ColumnCount() int {
	return len(h.columns)
}

// Columns returns a copy of the schema entries in file order.
func (h *FileHeader) Columns() []ColumnSchema {
	out := make([]ColumnSchema, len(h.columns))
	copy(out, h.columns)
	return out
}

// Column returns the schema entry at index i.
func (h *FileHeader) Column(i int) ColumnSchema {
	return h.columns[i]
}

// Lookup finds a column by name.
func (h *FileHeader) Lookup(name string) (ColumnSchema, int, bool) {
	i, ok := h.index[name]
	if !ok {
		return ColumnSchema{}, -1, false
	}
	return h.columns[i], i, true
}

// Names returns the column names in file order.
func (h *FileHeader) Names() []string {
	names := make([]string, len(h.columns))
	for i, c := range h.columns {
		names[i] = c.name
	}
	return names
}

// Size returns the encoded size of the fixed header and all schema entries,
// which is also the offset of the first block.
func (h *FileHeader) Size() int64 {
	size := int64(FixedHeaderSize)
	for _, c := range h.columns {
		size += c.EntrySize()
	}
	return size
}

// FileSize returns the offset one past the last block.
func (h *FileHeader) FileSize() int64 {
	return int64(h.columns[len(h.columns)-1].End())
}

// TotalUncompressedSize sums the uncompressed block sizes.
func (h *FileHeader) TotalUncompressedSize() int64 {
	var total int64
	for _, c := range h.columns {
		total += int64(c.uncompressedSize)
	}
	return total
}

// TotalCompressedSize sums the compressed block sizes.
func (h *FileHeader) TotalCompressedSize() int64 {
	var total int64
	for _, c := range h.columns {
		total += int64(c.compressedSize)
	}
	return total
}

// CompressionRatio returns total compressed over total uncompressed size, or
// 1 when there is no data.
func (h *FileHeader) CompressionRatio() float64 {
	uncompressed := h.TotalUncompressedSize()
	if uncompressed == 0 {
		return 1
	}
	return float64(h.TotalCompressedSize()) / float64(uncompressed)
}

// String returns a detailed, multi-line description of the header.
func (h *FileHeader) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CLMN v%d: %d columns, %d rows\n", Version, len(h.columns), h.rowCount)
	fmt.Fprintf(&b, "header size: %d bytes, file size: %d bytes\n", h.Size(), h.FileSize())
	fmt.Fprintf(&b, "data: %d bytes uncompressed, %d bytes compressed (ratio %.3f)\n",
		h.TotalUncompressedSize(), h.TotalCompressedSize(), h.CompressionRatio())
	for i, c := range h.columns {
		fmt.Fprintf(&b, "  [%d] %-20s %-7s uncompressed=%-10d compressed=%-10d offset=%-10d ratio=%.3f\n",
			i, c.name, c.typ, c.uncompressedSize, c.compressedSize, c.offset, c.CompressionRatio())
	}
	return b.String()
}
