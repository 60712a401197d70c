// Package errors provides coded errors for conformflow. Codes give the CLI
// and logs a stable handle on failure classes; causes stay reachable via
// errors.Is and errors.As.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies a failure class.
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound  Code = "E101"
	CodeInvalidFormat Code = "E103"
	CodeMissingColumn Code = "E104"

	// Processing errors (2xx)
	CodeParseFailed    Code = "E201"
	CodeEncodingFailed Code = "E202"
	CodeModelFailed    Code = "E203"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// DuckDB errors (5xx)
	CodeDuckDBWrite Code = "E503"

	// Configuration errors (6xx)
	CodeSplitMismatch  Code = "E601"
	CodeInvalidEnum    Code = "E602"
	CodeUnknownDataset Code = "E603"

	// Automaton errors (7xx)
	CodeMalformedAutomaton Code = "E701"
	CodeAutomatonParse     Code = "E702"

	// Formula errors (8xx)
	CodeFormulaSyntax Code = "E801"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is a coded error with optional context and a short stack.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error formats as "[code] message (k=v, ...): cause" with context keys
// sorted.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Context[k])
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps err with a code and message. A nil err yields nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	e := Wrap(err, code, fmt.Sprintf(format, args...))
	e.StackTrace = captureStack(2)
	return e
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	cf := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *Error) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		fmt.Fprintf(&sb, "  at %s\n    %s:%d\n", f.Function, f.File, f.Line)
	}
	return sb.String()
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string, cause error) *Error {
	e := New(CodeFileNotFound, "file not found").WithContext("path", path)
	e.Cause = cause
	return e
}

// SplitMismatch reports split ratios that do not sum to one.
func SplitMismatch(sum string, cause error) *Error {
	e := New(CodeSplitMismatch, "train/val/test split does not sum to 1").WithContext("sum", sum)
	e.Cause = cause
	return e
}

// UnknownDataset reports a dataset with no formula tiers.
func UnknownDataset(name string, cause error) *Error {
	e := New(CodeUnknownDataset, "no formula tiers for dataset").WithContext("dataset", name)
	e.Cause = cause
	return e
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the outermost error code from an error.
func GetCode(err error) Code {
	var cfErr *Error
	if errors.As(err, &cfErr) {
		return cfErr.Code
	}
	return CodeUnknown
}

// IsFatal reports configuration errors, which abort a run before any
// computation and are never retried: the experiment settings (E6xx) and
// the automaton files (E7xx).
func IsFatal(err error) bool {
	code := string(GetCode(err))
	return strings.HasPrefix(code, "E6") || strings.HasPrefix(code, "E7")
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:\n", len(m.Errors))
	for i, err := range m.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
