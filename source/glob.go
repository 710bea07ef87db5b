// Package source finds and loads the documents a view selects.
//
// Paths are slash-separated and relative to the project file system. Patterns
// use doublestar syntax: "*", "?", "[…]" and "{a,b}" within a segment, and a
// segment of "**" matches any number of directories, including none.
package source

import (
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ardnew/folio/lang"
)

// ErrPattern is returned for malformed glob patterns.
var ErrPattern = lang.NewError("invalid glob pattern")

// Glob returns the files in fsys matching any of patterns, sorted and
// without duplicates. A pattern whose fixed leading directories do not exist
// matches nothing.
func Glob(fsys fs.FS, patterns ...string) ([]string, error) {
	names := []string{}

	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(path.Clean("/"+pattern), "/")

		if !doublestar.ValidatePattern(pattern) {
			return nil, ErrPattern.With(slog.String("pattern", pattern))
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, ErrRead.Wrap(err).With(slog.String("pattern", pattern))
		}

		names = append(names, matches...)
	}

	slices.Sort(names)

	return slices.Compact(names), nil
}

// Match reports whether name matches pattern. Both are slash-separated.
// The only error is [ErrPattern], checked over the whole pattern even when
// the match is decided early.
func Match(pattern, name string) (bool, error) {
	if !doublestar.ValidatePattern(pattern) {
		return false, ErrPattern.With(slog.String("pattern", pattern))
	}

	if name == "" {
		return false, nil
	}

	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, ErrPattern.Wrap(err).With(slog.String("pattern", pattern))
	}

	return ok, nil
}
