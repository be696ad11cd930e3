package columnar

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

const (
	// stringLengthSize is the size of the length prefix of a string value.
	stringLengthSize = 2
	// MaxStringLength is the longest string value, in bytes, that fits the
	// length prefix.
	MaxStringLength = math.MaxUint16
)

// UncompressedSize returns the number of bytes EncodeColumn produces for
// values, without encoding them.
func UncompressedSize(values []string, t ColumnType) (int64, error) {
	if w, ok := t.FixedWidth(); ok {
		return int64(len(values)) * int64(w), nil
	}
	if t != TypeString {
		return 0, invalidType(t)
	}

	var size int64
	for row, v := range values {
		if len(v) > MaxStringLength {
			return 0, stringTooLong(row, v)
		}
		size += int64(stringLengthSize + len(v))
	}
	return size, nil
}

// EncodeColumn encodes text values as t, big-endian. Numeric text is trimmed
// before parsing; string values are stored byte for byte.
//
// Errors are ErrorTypeEncoding and carry the row index and offending value.
func EncodeColumn(values []string, t ColumnType) ([]byte, error) {
	size, err := UncompressedSize(values, t)
	if err != nil {
		return nil, err
	}
	return appendColumn(make([]byte, 0, size), values, t)
}

func appendColumn(dst []byte, values []string, t ColumnType) ([]byte, error) {
	switch t {
	case TypeInt32:
		for row, v := range values {
			n, err := parseInt32(strings.TrimSpace(v))
			if err != nil {
				return nil, notRepresentable(row, v, t, err)
			}
			dst = binary.BigEndian.AppendUint32(dst, uint32(n))
		}
	case TypeInt64:
		for row, v := range values {
			n, err := parseInt64(strings.TrimSpace(v))
			if err != nil {
				return nil, notRepresentable(row, v, t, err)
			}
			dst = binary.BigEndian.AppendUint64(dst, uint64(n))
		}
	case TypeFloat64:
		for row, v := range values {
			f, err := parseFloat64(strings.TrimSpace(v))
			if err != nil {
				return nil, notRepresentable(row, v, t, err)
			}
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
		}
	case TypeString:
		for row, v := range values {
			if len(v) > MaxStringLength {
				return nil, stringTooLong(row, v)
			}
			dst = binary.BigEndian.AppendUint16(dst, uint16(len(v)))
			dst = append(dst, v...)
		}
	default:
		return nil, invalidType(t)
	}
	return dst, nil
}

// DecodeColumn decodes exactly rowCount values of type t from data. Running
// out of bytes, or bytes left over after the last value, is
// ErrorTypeCorruptData.
func DecodeColumn(data []byte, t ColumnType, rowCount int64) (*Column, error) {
	if rowCount < 0 {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "negative row count %d", rowCount)
	}
	if !t.Valid() {
		return nil, invalidType(t)
	}

	// Check the minimum byte need before allocating anything sized by rowCount.
	minSize := int64(t.minValueSize())
	if rowCount > int64(len(data))/minSize {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeCorruptData, "column data too short for row count").
			WithDetail("type", t.String()).
			WithDetail("row", int64(len(data))/minSize).
			WithDetail("rows", rowCount).
			WithDetail("size", len(data))
	}

	col := &Column{Type: t}
	n := int(rowCount)
	pos := 0

	switch t {
	case TypeInt32:
		col.Int32s = make([]int32, n)
		for i := range col.Int32s {
			col.Int32s[i] = int32(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
		}
	case TypeInt64:
		col.Int64s = make([]int64, n)
		for i := range col.Int64s {
			col.Int64s[i] = int64(binary.BigEndian.Uint64(data[pos:]))
			pos += 8
		}
	case TypeFloat64:
		col.Float64s = make([]float64, n)
		for i := range col.Float64s {
			col.Float64s[i] = math.Float64frombits(binary.BigEndian.Uint64(data[pos:]))
			pos += 8
		}
	case TypeString:
		col.Strings = make([]string, n)
		for i := range col.Strings {
			if pos+stringLengthSize > len(data) {
				return nil, truncatedValue(i, pos, len(data))
			}
			l := int(binary.BigEndian.Uint16(data[pos:]))
			pos += stringLengthSize
			if pos+l > len(data) {
				return nil, truncatedValue(i, pos, len(data)).WithDetail("length", l)
			}
			col.Strings[i] = string(data[pos : pos+l])
			pos += l
		}
	}

	if pos != len(data) {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeCorruptData, "trailing bytes after last value").
			WithDetail("type", t.String()).
			WithDetail("rows", rowCount).
			WithDetail("consumed", pos).
			WithDetail("size", len(data))
	}
	return col, nil
}

func invalidType(t ColumnType) *clmnerrors.Error {
	return clmnerrors.Newf(clmnerrors.ErrorTypeInvalidTypeCode, "invalid column type code: 0x%02X", byte(t)).
		WithDetail("code", byte(t))
}

func notRepresentable(row int, value string, t ColumnType, cause error) *clmnerrors.Error {
	return clmnerrors.Wrapf(cause, clmnerrors.ErrorTypeEncoding, "value %q is not a valid %s", value, t).
		WithDetail("row", row).
		WithDetail("value", value).
		WithDetail("type", t.String())
}

func stringTooLong(row int, value string) *clmnerrors.Error {
	return clmnerrors.Newf(clmnerrors.ErrorTypeEncoding, "string value of %d bytes exceeds maximum of %d", len(value), MaxStringLength).
		WithDetail("row", row).
		WithDetail("length", len(value))
}

func truncatedValue(row, pos, size int) *clmnerrors.Error {
	return clmnerrors.New(clmnerrors.ErrorTypeCorruptData, "string value runs past end of column data").
		WithDetail("row", row).
		WithDetail("position", pos).
		WithDetail("size", size)
}
