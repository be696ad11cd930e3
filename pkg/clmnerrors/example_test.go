package clmnerrors_test

import (
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := clmnerrors.New(clmnerrors.ErrorTypeFormat, "invalid magic number").
		WithDetail("expected", "0x434C4D4E").
		WithDetail("actual", "0x00000000")

	fmt.Println(err.Error())

	// Output:
	// format: invalid magic number
}

// ExampleWrap shows how wrapped errors keep their cause and their category.
func ExampleWrap() {
	err := clmnerrors.Wrap(io.ErrUnexpectedEOF, clmnerrors.ErrorTypeCorruptData, "failed to read column block").
		WithDetail("column", "name").
		WithDetail("offset", 82)

	if clmnerrors.IsType(err, clmnerrors.ErrorTypeCorruptData) {
		fmt.Println("corrupt data")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// corrupt data
	// caused by unexpected EOF
}

// ExampleIsType shows that IsType inspects the whole chain.
func ExampleIsType() {
	inner := clmnerrors.Newf(clmnerrors.ErrorTypeInvalidTypeCode, "invalid column type code: 0x%02X", 0x07)
	err := clmnerrors.Wrap(inner, clmnerrors.ErrorTypeSchema, "invalid schema entry").
		WithDetail("column", "age")

	fmt.Println(clmnerrors.IsType(err, clmnerrors.ErrorTypeSchema))
	fmt.Println(clmnerrors.IsType(err, clmnerrors.ErrorTypeInvalidTypeCode))
	fmt.Println(clmnerrors.IsType(err, clmnerrors.ErrorTypeFormat))
	fmt.Println(clmnerrors.TypeOf(err))

	// Output:
	// true
	// true
	// false
	// schema
}

// ExampleDetails shows how details from every layer are merged.
func ExampleDetails() {
	inner := clmnerrors.New(clmnerrors.ErrorTypeCorruptData, "truncated value").
		WithDetail("row", 3)
	err := clmnerrors.Wrap(inner, clmnerrors.ErrorTypeCorruptData, "failed to decode column").
		WithDetail("column", "salary")

	details := clmnerrors.Details(err)
	fmt.Println(details["column"], details["row"])

	// Output:
	// salary 3
}
