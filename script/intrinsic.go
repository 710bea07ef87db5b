package script

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/markup"
)

// Intrinsic is a host function callable from view scripts. Intrinsics must
// be pure: they see only their arguments.
type Intrinsic struct {
	Func func(args ...any) (any, error)
	Name string
	// Types optionally declares signatures for compile-time checking, e.g.
	// new(func(string) string).
	Types []any
}

// Built-in intrinsics, initialized once per process.
//
//nolint:gochecknoglobals
var (
	intrinsicsOnce sync.Once
	intrinsics     map[string]Intrinsic
)

// Intrinsics returns a copy of the built-in intrinsics keyed by name.
func Intrinsics() map[string]Intrinsic {
	intrinsicsOnce.Do(func() {
		intrinsics = make(map[string]Intrinsic)

		for _, in := range []Intrinsic{
			{Name: "markdown", Func: stringFunc(markup.Markdown), Types: []any{new(func(string) string)}},
			{Name: "sanitize", Func: stringFunc(markup.Sanitize), Types: []any{new(func(string) string)}},
			{Name: "slug", Func: stringFunc(markup.Slug), Types: []any{new(func(string) string)}},
			{Name: "date", Func: dateIntrinsic},
			{Name: "datetime", Func: dateTimeIntrinsic},
			{Name: "compareDates", Func: compareDatesIntrinsic},
			{Name: "sortWith", Func: sortWithIntrinsic},
			{Name: "pad", Func: padIntrinsic},
		} {
			intrinsics[in.Name] = in
		}
	})

	return maps.Clone(intrinsics)
}

func stringFunc(fn func(string) string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}

		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}

		return fn(s), nil
	}
}

// date(s) parses "YYYY-MM-DD" into a date. Dates and datetimes pass through
// as their calendar date.
func dateIntrinsic(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}

	switch x := args[0].(type) {
	case lang.NativeDate:
		return x, nil
	case lang.NativeDateTime:
		return lang.MakeNativeDate(lang.DateOf(x.Time())), nil
	case string:
		d, err := lang.ParseDate(x)
		if err != nil {
			return nil, err
		}

		return lang.MakeNativeDate(d), nil
	}

	return nil, invalidArgument(0, args[0], "date string")
}

// datetime(s) parses an RFC 3339 timestamp. A date becomes midnight UTC.
func dateTimeIntrinsic(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}

	switch x := args[0].(type) {
	case lang.NativeDateTime:
		return x, nil
	case lang.NativeDate:
		return lang.MakeNativeDateTime(x.Date().Time()), nil
	case string:
		t, err := lang.ParseDateTime(x)
		if err != nil {
			return nil, err
		}

		return lang.MakeNativeDateTime(t), nil
	}

	return nil, invalidArgument(0, args[0], "datetime string")
}

// compareDates(a, b) returns -1, 0 or 1 ordering two dates or datetimes by
// instant. Strings are parsed as either form.
func compareDatesIntrinsic(args ...any) (any, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}

	a, err := timeArg(args, 0)
	if err != nil {
		return nil, err
	}

	b, err := timeArg(args, 1)
	if err != nil {
		return nil, err
	}

	return a.Compare(b), nil
}

// sortWith(list, comparator) returns a stably sorted copy of list. The
// comparator is called with two elements and returns a negative number, zero
// or a positive number.
func sortWithIntrinsic(args ...any) (any, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}

	var list []any

	switch x := args[0].(type) {
	case nil:
		return []any{}, nil
	case []any:
		list = slices.Clone(x)
	default:
		return nil, invalidArgument(0, args[0], "list")
	}

	fn := args[1]
	if !callable(fn) {
		return nil, ErrNotCallable.With(slog.String("type", typeName(fn)))
	}

	var failed error

	slices.SortStableFunc(list, func(a, b any) int {
		if failed != nil {
			return 0
		}

		out, err := invoke(fn, a, b)
		if err != nil {
			failed = err

			return 0
		}

		n, ok := toNumber(out)
		if !ok {
			failed = ErrInvalidArgument.With(
				slog.String("comparator_result", typeName(out)))

			return 0
		}

		return cmp.Compare(n, 0)
	})

	if failed != nil {
		return nil, failed
	}

	return list, nil
}

// pad(value, fill, width) left-pads the string form of value.
func padIntrinsic(args ...any) (any, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}

	fill, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}

	width, ok := toNumber(args[2])
	if !ok {
		return nil, invalidArgument(2, args[2], "width")
	}

	return markup.Pad(display(args[0]), fill, int(width)), nil
}

func arity(args []any, n int) error {
	if len(args) != n {
		return ErrArity.With(slog.Int("want", n), slog.Int("got", len(args)))
	}

	return nil
}

func stringArg(args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", invalidArgument(i, args[i], "string")
	}

	return s, nil
}

func timeArg(args []any, i int) (time.Time, error) {
	switch x := args[i].(type) {
	case lang.NativeDate:
		return x.Date().Time(), nil
	case lang.NativeDateTime:
		return x.Time(), nil
	case time.Time:
		return x, nil
	case string:
		if d, err := lang.ParseDate(x); err == nil {
			return d.Time(), nil
		}

		return lang.ParseDateTime(x)
	}

	return time.Time{}, invalidArgument(i, args[i], "date or datetime")
}

func invalidArgument(i int, x any, want string) error {
	return ErrInvalidArgument.With(
		slog.Int("argument", i+1),
		slog.String("want", want),
		slog.String("got", typeName(x)),
	)
}
