package columnar

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

// ColumnType identifies how the values of a column are encoded. The set of
// types is closed and tied to format version 1.
type ColumnType uint8

const (
	TypeInt32   ColumnType = 0x00
	TypeInt64   ColumnType = 0x01
	TypeFloat64 ColumnType = 0x02
	TypeString  ColumnType = 0x03
)

// AllTypes lists every column type in code order.
var AllTypes = []ColumnType{TypeInt32, TypeInt64, TypeFloat64, TypeString}

// TypeFromCode converts a schema type byte into a ColumnType.
func TypeFromCode(code byte) (ColumnType, error) {
	t := ColumnType(code)
	if !t.Valid() {
		return 0, clmnerrors.Newf(clmnerrors.ErrorTypeInvalidTypeCode, "invalid column type code: 0x%02X", code).
			WithDetail("code", code)
	}
	return t, nil
}

// ParseColumnType converts a declared type name such as "int64" or "STRING".
func ParseColumnType(name string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int32", "int":
		return TypeInt32, nil
	case "int64", "long":
		return TypeInt64, nil
	case "float64", "double", "float":
		return TypeFloat64, nil
	case "string", "str", "text":
		return TypeString, nil
	default:
		return 0, clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "unknown column type %q", name).
			WithDetail("valid", []string{"int32", "int64", "float64", "string"})
	}
}

// Valid reports whether t is one of the defined types.
func (t ColumnType) Valid() bool {
	return t <= TypeString
}

// Code returns the schema type byte.
func (t ColumnType) Code() byte {
	return byte(t)
}

// FixedWidth returns the encoded width of one value and true for fixed-width
// types, or 0 and false for strings.
func (t ColumnType) FixedWidth() (int, bool) {
	switch t {
	case TypeInt32:
		return 4, true
	case TypeInt64, TypeFloat64:
		return 8, true
	default:
		return 0, false
	}
}

// minValueSize is the smallest number of bytes one encoded value occupies.
func (t ColumnType) minValueSize() int {
	if w, ok := t.FixedWidth(); ok {
		return w
	}
	return stringLengthSize
}

func (t ColumnType) String() string {
	switch t {
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeFloat64:
		return "FLOAT64"
	case TypeString:
		return "STRING"
	default:
		return "UNKNOWN(0x" + strconv.FormatUint(uint64(t), 16) + ")"
	}
}

// Description returns a human-readable description of the encoding.
func (t ColumnType) Description() string {
	switch t {
	case TypeInt32:
		return "32-bit signed integer"
	case TypeInt64:
		return "64-bit signed integer"
	case TypeFloat64:
		return "64-bit IEEE-754 floating point"
	case TypeString:
		return "length-prefixed UTF-8 string"
	default:
		return "unknown type"
	}
}

// inferenceOrder is tried in order; the first parser that accepts the value
// decides the type.
var inferenceOrder = []struct {
	typ     ColumnType
	accepts func(string) bool
}{
	{TypeInt32, func(s string) bool { _, err := parseInt32(s); return err == nil }},
	{TypeInt64, func(s string) bool { _, err := parseInt64(s); return err == nil }},
	{TypeFloat64, func(s string) bool { _, err := parseFloat64(s); return err == nil }},
}

// InferType returns the narrowest type that can hold text. Empty or
// whitespace-only text infers TypeString.
func InferType(text string) ColumnType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TypeString
	}
	for _, p := range inferenceOrder {
		if p.accepts(trimmed) {
			return p.typ
		}
	}
	return TypeString
}

// InferTypes infers one type per value of a sample row.
func InferTypes(row []string) []ColumnType {
	types := make([]ColumnType, len(row))
	for i, v := range row {
		types[i] = InferType(v)
	}
	return types
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// parseFloat64 accepts finite decimal floating point text. Hexadecimal
// mantissas, digit separators, infinities and NaN are rejected.
func parseFloat64(s string) (float64, error) {
	if strings.ContainsRune(s, '_') || hasHexPrefix(s) {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// formatFloat64 renders the shortest text that parses back to v. The result
// always carries a decimal point or exponent so it re-infers as TypeFloat64.
func formatFloat64(v float64) string {
	abs := math.Abs(v)
	var s string
	if abs == 0 || (abs >= 1e-4 && abs < 1e21) {
		s = strconv.FormatFloat(v, 'f', -1, 64)
	} else {
		s = strconv.FormatFloat(v, 'e', -1, 64)
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
