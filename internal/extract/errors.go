package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax reports source the parser could not fully recognize.
	ErrSyntax = errors.New("syntax error")
	// ErrTooLarge reports source exceeding the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrInvalidEncoding reports source that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("content is not valid UTF-8")
)

// ParseError is returned when a file cannot be turned into a SourceFile.
// Line and Column are 1-based and zero when no position applies.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
