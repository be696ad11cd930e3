package columnar

import (
	"strconv"
)

// Column holds the decoded values of one column. Exactly one of the typed
// slices is populated, selected by Type.
type Column struct {
	Name     string
	Type     ColumnType
	Int32s   []int32
	Int64s   []int64
	Float64s []float64
	Strings  []string
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Type {
	case TypeInt32:
		return len(c.Int32s)
	case TypeInt64:
		return len(c.Int64s)
	case TypeFloat64:
		return len(c.Float64s)
	case TypeString:
		return len(c.Strings)
	default:
		return 0
	}
}

// Value returns value i as int32, int64, float64 or string.
func (c *Column) Value(i int) interface{} {
	switch c.Type {
	case TypeInt32:
		return c.Int32s[i]
	case TypeInt64:
		return c.Int64s[i]
	case TypeFloat64:
		return c.Float64s[i]
	case TypeString:
		return c.Strings[i]
	default:
		return nil
	}
}

// Text returns value i in its canonical text form. Integers print in decimal,
// floats in their shortest round-trip form with a decimal point or exponent,
// and strings unchanged.
func (c *Column) Text(i int) string {
	switch c.Type {
	case TypeInt32:
		return strconv.FormatInt(int64(c.Int32s[i]), 10)
	case TypeInt64:
		return strconv.FormatInt(c.Int64s[i], 10)
	case TypeFloat64:
		return formatFloat64(c.Float64s[i])
	case TypeString:
		return c.Strings[i]
	default:
		return ""
	}
}

// TextValues returns every value in its canonical text form.
func (c *Column) TextValues() []string {
	if c.Type == TypeString {
		out := make([]string, len(c.Strings))
		copy(out, c.Strings)
		return out
	}
	n := c.Len()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = c.Text(i)
	}
	return out
}
