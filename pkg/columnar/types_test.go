package columnar

import (
	"math"
	"strconv"
	"testing"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		text string
		want ColumnType
	}{
		{"0", TypeInt32},
		{"42", TypeInt32},
		{"  -7  ", TypeInt32},
		{"+5", TypeInt32},
		{"2147483647", TypeInt32},
		{"-2147483648", TypeInt32},
		{"2147483648", TypeInt64},
		{"-2147483649", TypeInt64},
		{"9223372036854775807", TypeInt64},
		{"9223372036854775808", TypeFloat64},
		{"3.14", TypeFloat64},
		{"-0.5", TypeFloat64},
		{"1e10", TypeFloat64},
		{"1.0", TypeFloat64},
		{".5", TypeFloat64},
		{"1e400", TypeString},
		{"NaN", TypeString},
		{"Inf", TypeString},
		{"-Infinity", TypeString},
		{"0x10", TypeString},
		{"0x1p-2", TypeString},
		{"1_000", TypeString},
		{"", TypeString},
		{"   ", TypeString},
		{"Alice", TypeString},
		{"12abc", TypeString},
		{"1,000", TypeString},
	}

	for _, tt := range tests {
		t.Run(strconv.Quote(tt.text), func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.text))
		})
	}
}

func TestInferTypes(t *testing.T) {
	assert.Equal(t,
		[]ColumnType{TypeInt32, TypeString, TypeFloat64, TypeInt64},
		InferTypes([]string{"1", "Alice", "2.5", "10000000000"}),
	)
	assert.Empty(t, InferTypes(nil))
}

func TestTypeFromCode(t *testing.T) {
	for _, ct := range AllTypes {
		got, err := TypeFromCode(ct.Code())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}

	for _, code := range []byte{0x04, 0x10, 0xFF} {
		_, err := TypeFromCode(code)
		require.Error(t, err)
		assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeInvalidTypeCode))
		assert.Equal(t, code, clmnerrors.Details(err)["code"])
	}
}

func TestParseColumnType(t *testing.T) {
	tests := map[string]ColumnType{
		"int32":   TypeInt32,
		"INT64":   TypeInt64,
		" long ":  TypeInt64,
		"Float64": TypeFloat64,
		"double":  TypeFloat64,
		"string":  TypeString,
	}
	for name, want := range tests {
		got, err := ParseColumnType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseColumnType("decimal")
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeValidation))
}

func TestColumnTypeProperties(t *testing.T) {
	tests := []struct {
		typ   ColumnType
		code  byte
		width int
		fixed bool
		name  string
	}{
		{TypeInt32, 0x00, 4, true, "INT32"},
		{TypeInt64, 0x01, 8, true, "INT64"},
		{TypeFloat64, 0x02, 8, true, "FLOAT64"},
		{TypeString, 0x03, 0, false, "STRING"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.typ.Code())
		width, fixed := tt.typ.FixedWidth()
		assert.Equal(t, tt.width, width)
		assert.Equal(t, tt.fixed, fixed)
		assert.Equal(t, tt.name, tt.typ.String())
		assert.NotEqual(t, "unknown type", tt.typ.Description())
		assert.True(t, tt.typ.Valid())
	}

	bad := ColumnType(0x09)
	assert.False(t, bad.Valid())
	assert.Equal(t, "UNKNOWN(0x9)", bad.String())
	assert.Equal(t, "unknown type", bad.Description())
}

func TestFormatFloat64(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{30, "30.0"},
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{1.5, "1.5"},
		{-2.25, "-2.25"},
		{0.1, "0.1"},
		{1e-4, "0.0001"},
		{1e-5, "1e-05"},
		{123456789.0, "123456789.0"},
		{1e21, "1e+21"},
		{math.MaxFloat64, "1.7976931348623157e+308"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat64(tt.v))
	}
}

func TestInferenceIsIdempotent(t *testing.T) {
	inputs := []string{
		"1", " 42 ", "-2147483648", "2147483648", "-9223372036854775808",
		"3.14", "30.0", "1e10", "-0.0", "1e-7", "0.1", "123456789012345678901234",
		"Alice", "", "  padded  ", "NaN",
	}

	for _, in := range inputs {
		t.Run(strconv.Quote(in), func(t *testing.T) {
			typ := InferType(in)
			encoded, err := EncodeColumn([]string{in}, typ)
			require.NoError(t, err)
			col, err := DecodeColumn(encoded, typ, 1)
			require.NoError(t, err)

			text := col.Text(0)
			assert.Equal(t, typ, InferType(text), "re-inferring %q", text)

			again, err := EncodeColumn([]string{text}, typ)
			require.NoError(t, err)
			assert.Equal(t, encoded, again, "canonical text must encode identically")
		})
	}
}
