package errors

import (
	"errors"
	"os"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(CodeInvalidEnum, "invalid value").
		WithContext("field", "heuristic").
		WithContext("allowed", "heuristic_1")
	want := "[E602] invalid value (allowed=heuristic_1, field=heuristic)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrapf(os.ErrNotExist, CodeFileNotFound, "open %s", "log.xes")
	if got := wrapped.Error(); got != "[E101] open log.xes: file does not exist" {
		t.Errorf("Wrapf().Error() = %q", got)
	}
	if !errors.Is(wrapped, os.ErrNotExist) {
		t.Error("errors.Is(wrapped, os.ErrNotExist) = false, want true")
	}
	if len(wrapped.FormatStack()) == 0 {
		t.Error("FormatStack() is empty")
	}
}

func TestCodes(t *testing.T) {
	cause := errors.New("sum is 0.9")
	tests := []struct {
		err   error
		code  Code
		fatal bool
	}{
		{SplitMismatch("0.9", cause), CodeSplitMismatch, true},
		{UnknownDataset("foo", nil), CodeUnknownDataset, true},
		{FileNotFound("x", nil), CodeFileNotFound, false},
		{Wrap(cause, CodeMalformedAutomaton, "load"), CodeMalformedAutomaton, true},
		{Wrap(cause, CodeAutomatonParse, "load"), CodeAutomatonParse, true},
		{Wrap(cause, CodeFormulaSyntax, "parse"), CodeFormulaSyntax, false},
		{cause, CodeUnknown, false},
	}
	for _, tt := range tests {
		if got := GetCode(tt.err); got != tt.code {
			t.Errorf("GetCode(%v) = %s, want %s", tt.err, got, tt.code)
		}
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}
	if !errors.Is(SplitMismatch("1.1", nil), New(CodeSplitMismatch, "")) {
		t.Error("errors.Is by code = false, want true")
	}
	if Wrap(nil, CodeUnknown, "x") != nil {
		t.Error("Wrap(nil) != nil")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Combined() != nil {
		t.Errorf("Combined() = %v, want nil", m.Combined())
	}
	m.Add(nil)
	m.Add(os.ErrNotExist)
	if m.Combined() != os.ErrNotExist {
		t.Errorf("Combined() = %v, want %v", m.Combined(), os.ErrNotExist)
	}
	m.Add(os.ErrPermission)
	if !m.HasErrors() || !errors.Is(m.Combined(), os.ErrPermission) {
		t.Errorf("Combined() = %v, want both errors", m.Combined())
	}
}
