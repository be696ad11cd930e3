package columnar

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

const (
	// Magic identifies a CLMN file ("CLMN" in ASCII).
	Magic uint32 = 0x434C4D4E
	// Version is the only supported format version.
	Version uint16 = 1
	// FixedHeaderSize is the size of magic, version, column count and row count.
	FixedHeaderSize = 18
	// SchemaEntryFixedSize is the size of a schema entry excluding its name.
	SchemaEntryFixedSize = 19
	// MaxNameLength is the longest column name, in bytes.
	MaxNameLength = math.MaxUint16
)

// maxPreallocColumns bounds the schema slice allocated from an untrusted
// column count.
const maxPreallocColumns = 1024

// AppendBinary appends the encoded fixed header and schema entries to dst.
func (h *FileHeader) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, Magic)
	dst = binary.BigEndian.AppendUint16(dst, Version)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(h.columns)))
	dst = binary.BigEndian.AppendUint64(dst, uint64(h.rowCount))
	for _, c := range h.columns {
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(c.name)))
		dst = append(dst, c.name...)
		dst = append(dst, c.typ.Code())
		dst = binary.BigEndian.AppendUint32(dst, c.uncompressedSize)
		dst = binary.BigEndian.AppendUint32(dst, c.compressedSize)
		dst = binary.BigEndian.AppendUint64(dst, c.offset)
	}
	return dst
}

// MarshalBinary encodes the header.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, h.Size())), nil
}

// ReadHeader parses and validates a header from r. It reads exactly the
// header bytes and nothing more.
//
// Errors:
//   - ErrorTypeFormat: wrong magic number or unsupported version, reported
//     before any schema entry is read
//   - ErrorTypeSchema: zero columns, an invalid type code, or entries that
//     fail FileHeader validation
//   - ErrorTypeCorruptData: r ends inside the header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var fixed [FixedHeaderSize]byte
	if err := readExact(r, fixed[:], "fixed header"); err != nil {
		return nil, err
	}

	magic := binary.BigEndian.Uint32(fixed[0:4])
	if magic != Magic {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeFormat, "invalid magic number 0x%08X", magic).
			WithDetail("expected", Magic).
			WithDetail("actual", magic)
	}
	version := binary.BigEndian.Uint16(fixed[4:6])
	if version != Version {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeFormat, "unsupported format version %d", version).
			WithDetail("expected", Version).
			WithDetail("actual", version)
	}

	columnCount := binary.BigEndian.Uint32(fixed[6:10])
	if columnCount == 0 {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeSchema, "header must contain at least one column")
	}
	rawRows := binary.BigEndian.Uint64(fixed[10:18])
	if rawRows > math.MaxInt64 {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "row count %d out of range", rawRows)
	}

	prealloc := columnCount
	if prealloc > maxPreallocColumns {
		prealloc = maxPreallocColumns
	}
	columns := make([]ColumnSchema, 0, prealloc)

	var lenBuf [2]byte
	var tail [SchemaEntryFixedSize - 2]byte
	for i := uint32(0); i < columnCount; i++ {
		if err := readExact(r, lenBuf[:], "schema entry"); err != nil {
			return nil, err.WithDetail("index", i)
		}
		name := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
		if err := readExact(r, name, "column name"); err != nil {
			return nil, err.WithDetail("index", i)
		}
		if err := readExact(r, tail[:], "schema entry"); err != nil {
			return nil, err.WithDetail("index", i).WithDetail("column", string(name))
		}

		t, err := TypeFromCode(tail[0])
		if err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeSchema, "invalid schema entry").
				WithDetail("column", string(name)).
				WithDetail("index", i)
		}
		columns = append(columns, NewColumnSchema(
			string(name),
			t,
			binary.BigEndian.Uint32(tail[1:5]),
			binary.BigEndian.Uint32(tail[5:9]),
			binary.BigEndian.Uint64(tail[9:17]),
		))
	}

	return NewFileHeader(int64(rawRows), columns)
}

func readExact(r io.Reader, buf []byte, what string) *clmnerrors.Error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return clmnerrors.Wrapf(err, clmnerrors.ErrorTypeCorruptData, "truncated %s", what)
		}
		return clmnerrors.Wrapf(err, clmnerrors.ErrorTypeFile, "failed to read %s", what)
	}
	return nil
}
