// Package errors provides the error type shared by the packaging pipeline.
// Every fatal condition carries the operation that failed, a category and,
// where it applies, the 1-based table row or the file path involved, so the
// CLI can report exactly which row or file stopped a run.
package errors

import (
	stderrors "errors"
	"fmt"
	"log"
	"strings"
)

// Op represents an operation name for error context.
type Op string

// Kind represents the category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLoad
	KindValidation
	KindIO
	KindConfig
	KindParse
	KindSubmit
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindParse:
		return "parse"
	case KindSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Row  int    // 1-based table row, 0 when not row-scoped
	Path string // File involved, empty when not file-scoped
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Row marks an error as scoped to a 1-based table row when passed to E.
type Row int

// Path marks an error as scoped to a file when passed to E.
type Path string

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Path != "" {
			fmt.Fprintf(&b, " (%s)", e.Path)
		}
		if e.Err != nil {
			b.WriteString(": ")
		}
	} else if e.Path != "" {
		b.WriteString(e.Path)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, Row, Path, error, string (message).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Row:
			e.Row = int(a)
		case Path:
			e.Path = string(a)
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	return e
}

// Errorf creates a row- or file-less Error with a formatted message.
func Errorf(op Op, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// RowErrorf creates a validation error scoped to a 1-based table row.
func RowErrorf(op Op, row int, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: KindValidation, Row: row, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with an operation name for context.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Msg: msg, Err: err}
}

// IgnoreError explicitly ignores an error with a reason.
//
// Example:
//
//	errors.IgnoreError(tmp.Close(), "cleanup after failed compression")
func IgnoreError(err error, reason string) {
	if err != nil {
		log.Printf("Debug: ignoring error (%s): %v", reason, err)
	}
}

// IsKind checks if any error in the chain is of the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetKind returns the kind of the outermost *Error in the chain that has one,
// or KindUnknown.
func GetKind(err error) Kind {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return KindUnknown
		}
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

// RowOf returns the first table row recorded in the error chain, or 0.
func RowOf(err error) int {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return 0
		}
		if e.Row > 0 {
			return e.Row
		}
		err = e.Err
	}
	return 0
}
