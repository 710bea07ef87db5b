package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/natefinch/atomic"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
	"github.com/ardnew/folio/profile"
)

// defaultConfigIndent is the number of spaces to use for indentation
// when generating the default configuration file.
const defaultConfigIndent = 2

// Init writes the global defaults file from the current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) error {
	ktx := kongContextFrom(ctx)

	confPath := ktx.Model.Vars()[ConfigIdentifier]
	if confPath == "" {
		return ErrWriteConfig.With(slog.String("reason", "no configuration path"))
	}

	if _, err := os.Stat(confPath); err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(ErrFileExists)
	}

	doc := lang.NewDocument(confPath, defaults(ktx),
		" Defaults for "+ktx.Model.Name+" flags. Command-line flags take precedence.")

	var buf bytes.Buffer
	if err := doc.Format(ctx, &buf, defaultConfigIndent); err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(confPath), 0o700); err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := atomic.WriteFile(confPath, &buf); err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	log.DebugContext(ctx, "initialized configuration file", slog.String("path", confPath))

	return nil
}

// defaults returns an object holding the value of each persistent flag: the
// application flags and those of the default command.
func defaults(ktx *kong.Context) lang.Value {
	flags := slices.Clone(ktx.Model.Flags)

	if cmd := ktx.Model.DefaultCmd; cmd != nil {
		flags = append(flags, cmd.Flags...)
	}

	ignore := []string{"help", "project", profile.Tag}

	var props []lang.Property

	for _, flag := range flags {
		if flag.Hidden || slices.ContainsFunc(ignore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		if v, ok := flagValue(ktx.FlagValue(flag)); ok {
			props = append(props, lang.Prop(flag.Name, v))
		}
	}

	obj, err := lang.Object(props...)
	if err != nil {
		// Flag names are unique.
		panic(err)
	}

	return obj
}

// flagValue returns the document value for a flag, or false if the flag is
// unset.
func flagValue(val any) (lang.Value, bool) {
	switch v := val.(type) {
	case nil:
		return lang.Value{}, false

	case bool:
		return lang.Bool(v), true

	case string:
		return lang.String(v), v != ""

	case int:
		return lang.Int(int64(v)), true

	case int64:
		return lang.Int(v), true

	case float64:
		return lang.Float(v), true

	case time.Duration:
		return lang.String(v.String()), v != 0

	case []string:
		elems := make([]lang.Value, len(v))
		for i, s := range v {
			elems[i] = lang.String(s)
		}

		return lang.Array(elems...), len(v) > 0

	case fmt.Stringer:
		return lang.String(v.String()), v.String() != ""

	default:
		s := fmt.Sprint(v)

		return lang.String(s), s != ""
	}
}
