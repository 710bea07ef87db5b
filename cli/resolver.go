package cli

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
)

// resolve returns a [kong.ConfigurationLoader] for defaults files written in
// the folio document language. The document is an object keyed by flag name:
//
//	{
//	  log-level: "debug"
//	  workers: 4
//	  dry-run: false
//	}
//
// Keys may use underscores in place of hyphens. Command-line flags override
// these values. A file that does not parse is ignored with a warning.
func resolve(ctx context.Context) func(r io.Reader) (kong.Resolver, error) {
	return func(r io.Reader) (kong.Resolver, error) {
		doc, err := lang.ParseReader(ctx, r)
		if err != nil {
			log.WarnContext(ctx, "ignoring defaults file", slog.Any("error", err))

			return defaults{}, nil
		}

		root := doc.Root()
		if root.Kind() != lang.KindObject {
			log.WarnContext(ctx, "ignoring defaults file",
				slog.String("reason", "not an object"),
				slog.String("kind", root.Kind().String()))

			return defaults{}, nil
		}

		return defaultsOf(root), nil
	}
}

// defaults implements [kong.Resolver] over a defaults file.
type defaults map[string]any

// Validate implements [kong.Resolver].
func (defaults) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (d defaults) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if v, ok := d[flag.Name]; ok {
		return v, nil
	}

	if v, ok := d[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return v, nil
	}

	return nil, nil
}

// defaultsOf converts the properties of obj to values kong can decode.
// Numbers become strings, which kong parses with the flag's own type.
func defaultsOf(obj lang.Value) defaults {
	d := make(defaults, obj.Len())

	for _, prop := range obj.Props() {
		d[prop.Key()] = flagNative(prop.Value())
	}

	return d
}

func flagNative(v lang.Value) any {
	switch v.Kind() {
	case lang.KindInt:
		n, _ := v.Int()

		return strconv.FormatInt(n, 10)

	case lang.KindFloat:
		f, _ := v.Float()

		return strconv.FormatFloat(f, 'f', -1, 64)

	case lang.KindArray:
		elems := v.Elems()
		list := make([]any, len(elems))

		for i, e := range elems {
			list[i] = flagNative(e)
		}

		return list

	case lang.KindDate, lang.KindDateTime:
		return v.WithDoc().String()
	}

	return lang.ToNative(v)
}
