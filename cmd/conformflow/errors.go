package main

import (
	"context"
	"errors"
	"os"

	"github.com/logflow/conformflow/pkg/automaton"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/ltlf"
	"github.com/logflow/conformflow/pkg/parser"
)

// classify gives uncoded errors the code of the package sentinel they wrap.
// Errors that already carry a code are returned unchanged.
func classify(err error) error {
	var coded *cferrors.Error
	if err == nil || errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, ltlf.ErrSyntax), errors.Is(err, ltlf.ErrTemporal):
		return cferrors.Wrap(err, cferrors.CodeFormulaSyntax, "invalid formula")
	case errors.Is(err, automaton.ErrMalformedAutomaton):
		return cferrors.Wrap(err, cferrors.CodeMalformedAutomaton, "invalid automaton")
	case errors.Is(err, os.ErrNotExist):
		return cferrors.Wrap(err, cferrors.CodeFileNotFound, "file not found")
	case errors.Is(err, parser.ErrMissingColumn):
		return cferrors.Wrap(err, cferrors.CodeMissingColumn, "missing column")
	case errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, parser.ErrInvalidCSV),
		errors.Is(err, parser.ErrInvalidXES):
		return cferrors.Wrap(err, cferrors.CodeInvalidFormat, "unreadable log")
	case errors.Is(err, context.Canceled), errors.Is(err, parser.ErrContextCanceled):
		return cferrors.Wrap(err, cferrors.CodeContextCanceled, "interrupted")
	}
	return err
}

// exitCode is 2 for configuration errors (settings and automata), 130 for
// interrupts and 1 otherwise.
func exitCode(err error) int {
	switch {
	case cferrors.IsFatal(err):
		return 2
	case cferrors.IsCode(err, cferrors.CodeContextCanceled):
		return 130
	default:
		return 1
	}
}
