// Package pipeerr defines the error kinds raised by the snake pipeline and
// the report used to aggregate per-task failures across a run.
package pipeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a pipeline error
type Kind string

const (
	KindParse          Kind = "parse"
	KindMetadataDecode Kind = "metadata_decode"
	KindValidation     Kind = "validation"
	KindPathConflict   Kind = "path_conflict"
	KindOther          Kind = "other"
)

// ParseError reports malformed snake text
type ParseError struct {
	// Line is the 1-based line number in the source file
	Line int

	// Field names the offending field, empty when the whole line is at fault
	Field string

	// StartCol and EndCol are the 1-based inclusive column range of the field
	StartCol, EndCol int

	// Text is the raw content that failed to parse
	Text string

	// Err is the underlying cause
	Err error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %q (columns %d-%d): invalid value %q: %v",
		e.Line, e.Field, e.StartCol, e.EndCol, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeError reports a filename that does not carry section bounds
type DecodeError struct {
	Name   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode section bounds from %q: %s", e.Name, e.Reason)
}

// ValidationError reports values that are well-formed but inconsistent
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Invalid builds a ValidationError with a formatted message
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// PathConflictError reports an output path occupied by a non-directory.
// It is structural and aborts the whole run.
type PathConflictError struct {
	Path string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("path conflict: %s exists and is not a directory", e.Path)
}

// KindOf classifies err by the first typed pipeline error in its chain
func KindOf(err error) Kind {
	var (
		pe *ParseError
		de *DecodeError
		ve *ValidationError
		ce *PathConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return KindPathConflict
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &de):
		return KindMetadataDecode
	case errors.As(err, &ve):
		return KindValidation
	default:
		return KindOther
	}
}

// IsFatal reports whether err must abort the whole run rather than a single task
func IsFatal(err error) bool {
	return KindOf(err) == KindPathConflict
}
