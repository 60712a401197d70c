package ltlf

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is wrapped by every *SyntaxError.
	ErrSyntax = errors.New("ltlf: syntax error")

	// ErrTemporal is returned when a temporal operator reaches a
	// propositional evaluation.
	ErrTemporal = errors.New("ltlf: temporal operator in propositional context")
)

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ltlf: syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}
