package script

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/folio/lang"
)

// Error kinds. Match them with errors.Is against an [*Error].
var (
	ErrSyntax           = lang.NewError("script syntax error")
	ErrCompile          = lang.NewError("script compile error")
	ErrRuntime          = lang.NewError("script runtime error")
	ErrTimeout          = lang.NewError("script timed out")
	ErrMaxDepthExceeded = lang.NewError("maximum call depth exceeded")
)

// More specific failures, wrapped by the kinds above.
var (
	ErrUndefined       = lang.NewError("undefined definition")
	ErrDuplicate       = lang.NewError("duplicate definition")
	ErrArity           = lang.NewError("wrong number of arguments")
	ErrNotCallable     = lang.NewError("value is not callable")
	ErrInvalidArgument = lang.NewError("invalid argument")
	ErrIntrinsicExists = lang.NewError("intrinsic already registered")
)

// Error reports a failure in a view script. View and Hook locate the failing
// definition; Line is its 1-based line in the script when known.
type Error struct {
	Kind *lang.Error // one of ErrSyntax, ErrCompile, ErrRuntime, ErrTimeout, ErrMaxDepthExceeded
	Err  error
	View string
	Hook string
	Line int
}

func newError(kind *lang.Error, view, hook string, line int, err error) *Error {
	return &Error{Kind: kind, Err: err, View: view, Hook: hook, Line: line}
}

// Error implements the error interface:
// "view NAME hook HOOK line N: kind: cause".
func (e *Error) Error() string {
	var loc []string

	if e.View != "" {
		loc = append(loc, "view "+e.View)
	}

	if e.Hook != "" {
		loc = append(loc, "hook "+e.Hook)
	}

	if e.Line > 0 {
		loc = append(loc, "line "+strconv.Itoa(e.Line))
	}

	var buf strings.Builder

	if len(loc) > 0 {
		buf.WriteString(strings.Join(loc, " "))
		buf.WriteString(": ")
	}

	buf.WriteString(e.Kind.Error())

	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}

	return buf.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("view", e.View),
		slog.String("hook", e.Hook),
		slog.String("kind", e.Kind.Error()),
	}

	if e.Line > 0 {
		attrs = append(attrs, slog.Int("line", e.Line))
	}

	if e.Err != nil {
		attrs = append(attrs, slog.Any("cause", e.Err))
	}

	return slog.GroupValue(attrs...)
}
