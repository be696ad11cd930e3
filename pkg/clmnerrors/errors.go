// Package clmnerrors provides structured error handling for clmn with error
// categorization, contextual details and stack traces.
//
// # Overview
//
// Every failure in the CLMN codec is reported as an *Error whose Type names the
// failure class of the file format:
//   - ErrorTypeFormat: bad magic number or unsupported version
//   - ErrorTypeSchema: header entries that contradict each other
//   - ErrorTypeInvalidTypeCode: a type byte outside the defined codes
//   - ErrorTypeEncoding: a value that does not fit its column type
//   - ErrorTypeCorruptData: truncated or malformed bytes
//   - ErrorTypeSizeMismatch: decompressed length differs from the header
//   - ErrorTypeColumnNotFound: a selective read names an absent column
//
// Errors pick up identifiers (column, row, offset) as they cross component
// boundaries:
//
//	if err := decode(block); err != nil {
//	    return clmnerrors.Wrap(err, clmnerrors.ErrorTypeCorruptData, "failed to decode column").
//	        WithDetail("column", name).
//	        WithDetail("offset", offset)
//	}
//
// None of the error types are retryable: the same bytes always produce the same
// failure.
package clmnerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeFormat represents a wrong magic number or unsupported version
	ErrorTypeFormat ErrorType = "format"
	// ErrorTypeSchema represents an inconsistent file header
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeInvalidTypeCode represents an unknown column type byte
	ErrorTypeInvalidTypeCode ErrorType = "invalid_type_code"
	// ErrorTypeEncoding represents a value that cannot be encoded as its column type
	ErrorTypeEncoding ErrorType = "encoding"
	// ErrorTypeCorruptData represents truncated or malformed column bytes
	ErrorTypeCorruptData ErrorType = "corrupt_data"
	// ErrorTypeSizeMismatch represents a decompressed block of the wrong length
	ErrorTypeSizeMismatch ErrorType = "size_mismatch"
	// ErrorTypeColumnNotFound represents a requested column absent from the file
	ErrorTypeColumnNotFound ErrorType = "column_not_found"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeData represents malformed tabular input
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable description
//   - Cause: The underlying error, if any
//   - Details: Key-value pairs such as column, row or offset
//   - Stack: Call stack at the point of creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If err is already an
// *Error its stack trace is preserved. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return wrap(err, errType, message)
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return wrap(err, errType, fmt.Sprintf(format, args...))
}

func wrap(err error, errType ErrorType, message string) *Error {
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(3),
	}
}

// IsType reports whether any *Error in err's chain has the given type. A
// schema error caused by an invalid type code matches both ErrorTypeSchema and
// ErrorTypeInvalidTypeCode.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain, or
// ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Details merges the details of every *Error in err's chain. Outer errors win
// on key collisions.
func Details(err error) map[string]interface{} {
	merged := make(map[string]interface{})
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		for k, v := range e.Details {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
		err = e.Cause
	}
	return merged
}

// captureStack captures the current call stack up to maxFrames deep.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
