package lang

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrLex   = NewError("lex error")
	ErrParse = NewError("parse error")

	ErrUnexpectedChar     = NewError("unexpected character")
	ErrUnterminatedString = NewError("unterminated string")
	ErrUnterminatedBlock  = NewError("unterminated block comment")
	ErrDelimiterMismatch  = NewError("literal string delimiter count mismatch")
	ErrInvalidEscape      = NewError("invalid escape sequence")
	ErrInvalidNumber      = NewError("invalid number")
	ErrInvalidDate        = NewError("invalid date")
	ErrInvalidDateTime    = NewError("invalid datetime")
	ErrMissingYear        = NewError("missing year in date")
	ErrMissingMonth       = NewError("missing month in date")
	ErrMissingDay         = NewError("missing day in date")
	ErrUnexpectedToken    = NewError("unexpected token")
	ErrUnexpectedEOF      = NewError("unexpected end of input")
	ErrExpectedSeparator  = NewError("expected comma or newline")
	ErrInvalidKey         = NewError("invalid property key")
	ErrDuplicateProperty  = NewError("duplicate property")
	ErrDanglingDocstring  = NewError("docstring is not attached to a value")
	ErrDocumentedTwice    = NewError("value already documented")
	ErrMisplacedDocstring = NewError("misplaced docstring")
	ErrMaxDepthExceeded   = NewError("maximum nesting depth exceeded")
	ErrReadInput          = NewError("failed to read input")
	ErrUnsupportedValue   = NewError("unsupported value")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error. Errors that already are an
// *Error are returned as is.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	// Build error message using the first available format,
	// depending on which fields are set:
	//
	//   1. "<msg>: <err>" // base and wrapped error both set
	//   2. "<msg>"        // wrapped error is nil
	//   3. "<err>"        // base error message is empty
	//   4. ""             // no fields are set
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel e was derived from. Copies made
// by [Error.Wrap] and [Error.With] keep matching their origin.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.err != nil || len(t.attrs) != 0 {
		return false
	}

	return e.msg != "" && e.msg == t.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs, // Share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}

// Stage identifies which phase of reading a document failed.
type Stage int

const (
	StageLex   Stage = iota // lex
	StageParse              // parse
)

func (s Stage) String() string {
	if s == StageLex {
		return "lex"
	}

	return "parse"
}

// ParseError reports a lexical or structural error in a document together
// with its location.
type ParseError struct {
	Err    *Error   // sentinel describing the failure
	Path   string   // source path, if known
	Source string   // full document text, for the snippet
	Pos    Position // location of the offending token
	Stage  Stage
}

func newParseError(stage Stage, err *Error, pos Position) *ParseError {
	return &ParseError{Stage: stage, Err: err, Pos: pos}
}

// Error implements the error interface. The message has the form
// "path:line:column: stage error: message" followed by the offending source
// line and a caret under the column when the source is available.
func (e *ParseError) Error() string {
	var buf strings.Builder

	if e.Path != "" {
		buf.WriteString(e.Path)
		buf.WriteByte(':')
	}

	buf.WriteString(strconv.Itoa(e.Pos.Line))
	buf.WriteByte(':')
	buf.WriteString(strconv.Itoa(e.Pos.Column))
	buf.WriteString(": ")
	buf.WriteString(e.Stage.String())
	buf.WriteString(" error: ")
	buf.WriteString(e.Err.Error())

	if snippet := e.Snippet(); snippet != "" {
		buf.WriteByte('\n')
		buf.WriteString(snippet)
	}

	return buf.String()
}

// Snippet returns the offending source line prefixed with its line number
// and a caret marking the column, or "" without source text.
func (e *ParseError) Snippet() string {
	lines := strings.Split(e.Source, "\n")
	if e.Source == "" || e.Pos.Line < 1 || e.Pos.Line > len(lines) {
		return ""
	}

	var src strings.Builder

	line := strings.TrimRight(lines[e.Pos.Line-1], "\r")
	num := strconv.Itoa(e.Pos.Line)

	src.WriteString("  " + num + " | " + line + "\n")

	// 2 leading spaces + " | "
	padding := strings.Repeat(" ", len(num)+5)
	if e.Pos.Column > 1 {
		for _, r := range []rune(line)[:min(e.Pos.Column-1, len([]rune(line)))] {
			if r == '\t' {
				padding += "\t"
			} else {
				padding += " "
			}
		}
	}

	src.WriteString(padding + "^")

	return src.String()
}

// Unwrap returns the sentinel so errors.Is matches the specific failure.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrLex] or [ErrParse] matching the stage.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrLex:
		return e.Stage == StageLex
	case ErrParse:
		return e.Stage == StageParse
	}

	return false
}

// LogValue implements slog.LogValuer.
func (e *ParseError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("stage", e.Stage.String()),
		slog.Int("line", e.Pos.Line),
		slog.Int("column", e.Pos.Column),
		slog.Int("offset", e.Pos.Offset),
		slog.Any("error", e.Err),
	}

	if e.Path != "" {
		attrs = append([]slog.Attr{slog.String("path", e.Path)}, attrs...)
	}

	return slog.GroupValue(attrs...)
}
