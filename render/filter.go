package render

import (
	"log/slog"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/markup"
)

// Default layouts for the date filters. Layouts use Go reference time
// notation.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// ErrFilterInput is returned by filters given a value they cannot use.
var ErrFilterInput = lang.NewError("unsupported filter input")

var filterOnce sync.Once

// registerFilters adds folio's filters to pongo2's global filter table.
// Filters already present are left alone.
func registerFilters() {
	filterOnce.Do(func() {
		for _, f := range []struct {
			name string
			fn   pongo2.FilterFunction
		}{
			{"markdown", filterMarkdown},
			{"sanitize", filterSanitize},
			{"formatDate", filterFormatDate},
			{"formatDateTime", filterFormatDateTime},
			{"pad", filterPad},
		} {
			if pongo2.FilterExists(f.name) {
				continue
			}

			_ = pongo2.RegisterFilter(f.name, f.fn)
		}
	})
}

func filterMarkdown(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(markup.Markdown(in.String())), nil
}

func filterSanitize(in, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(markup.Sanitize(in.String())), nil
}

// filterFormatDate formats a date with the layout given as parameter, or
// [DateLayout].
func filterFormatDate(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return formatTime("formatDate", in, param, DateLayout)
}

// filterFormatDateTime formats a datetime with the layout given as
// parameter, or [DateTimeLayout]. Dates format as midnight UTC.
func filterFormatDateTime(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return formatTime("formatDateTime", in, param, DateTimeLayout)
}

func formatTime(name string, in, param *pongo2.Value, layout string) (*pongo2.Value, *pongo2.Error) {
	t, ok := timeOf(in.Interface())
	if !ok {
		return nil, filterError(name, in)
	}

	if !param.IsNil() {
		layout = param.String()
	}

	return pongo2.AsValue(t.Format(layout)), nil
}

func timeOf(x any) (time.Time, bool) {
	switch v := x.(type) {
	case lang.NativeDate:
		return v.Date().Time(), true

	case lang.NativeDateTime:
		return v.Time(), true

	case time.Time:
		return v, true

	case string:
		if d, err := lang.ParseDate(v); err == nil {
			return d.Time(), true
		}

		if t, err := lang.ParseDateTime(v); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// filterPad left-pads its input with '0' to the width given as parameter:
// {{ n|pad:3 }}.
func filterPad(in, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if !param.IsInteger() {
		return nil, filterError("pad", param)
	}

	return pongo2.AsValue(markup.Pad(in.String(), "0", param.Integer())), nil
}

func filterError(name string, v *pongo2.Value) *pongo2.Error {
	got := "null"
	if !v.IsNil() {
		got = v.String()
	}

	return &pongo2.Error{
		Sender:    "filter:" + name,
		OrigError: ErrFilterInput.With(slog.String("filter", name), slog.String("got", got)),
	}
}
