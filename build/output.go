package build

import (
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/ardnew/folio/lang"
)

// OutputItem is one rendered file waiting to be written.
type OutputItem struct {
	Path     string // relative to the output root, slash-separated
	Template string
	Source   string // empty for collection results
	Data     []byte
	Item     int
}

// ResolvePath substitutes each {{ field }} placeholder in pattern with the
// top-level field of item by that name and cleans the result. Strings are
// inserted as is; numbers, booleans and dates use their literal form.
//
// A missing or non-scalar field, an unterminated placeholder, or a result
// that is empty, absolute, or escapes the output root is [ErrOutputPath].
func ResolvePath(pattern string, item lang.Value) (string, error) {
	var b strings.Builder

	rest := pattern
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)

			break
		}

		b.WriteString(rest[:open])
		rest = rest[open+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", ErrOutputPath.With(
				slog.String("pattern", pattern),
				slog.String("reason", "unterminated placeholder"))
		}

		field := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		text, err := fieldText(item, field)
		if err != nil {
			return "", err.With(slog.String("pattern", pattern))
		}

		b.WriteString(text)
	}

	return cleanOutput(pattern, b.String())
}

func fieldText(item lang.Value, field string) (string, *lang.Error) {
	if !lang.IsIdentifier(field) {
		return "", ErrOutputPath.With(
			slog.String("field", field),
			slog.String("reason", "invalid field name"))
	}

	v, ok := item.Get(field)
	if !ok {
		return "", ErrOutputPath.With(
			slog.String("field", field),
			slog.String("reason", "missing field"))
	}

	switch v.Kind() {
	case lang.KindString:
		s, _ := v.Text()

		return s, nil

	case lang.KindInt:
		n, _ := v.Int()

		return strconv.FormatInt(n, 10), nil

	case lang.KindFloat, lang.KindBool, lang.KindDate, lang.KindDateTime:
		return v.WithDoc().String(), nil
	}

	return "", ErrOutputPath.With(
		slog.String("field", field),
		slog.String("reason", v.Kind().String()+" is not a path component"))
}

func cleanOutput(pattern, p string) (string, error) {
	fail := func(reason string) error {
		return ErrOutputPath.With(
			slog.String("pattern", pattern),
			slog.String("path", p),
			slog.String("reason", reason))
	}

	if strings.TrimSpace(p) == "" {
		return "", fail("empty path")
	}

	if strings.Contains(p, "\\") {
		p = strings.ReplaceAll(p, "\\", "/")
	}

	if path.IsAbs(p) {
		return "", fail("absolute path")
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fail("path leaves the output directory")
	}

	if strings.HasSuffix(p, "/") {
		return "", fail("path names a directory")
	}

	return clean, nil
}
