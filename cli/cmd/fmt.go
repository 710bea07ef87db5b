package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
	"github.com/ardnew/folio/source"
)

// Fmt reads a document and prints it in the chosen format.
type Fmt struct {
	Native Native `cmd:"" default:"withargs" help:"Format as the folio document language (default)."`
	JSON   JSON   `cmd:""                    help:"Format as JSON."`
	YAML   YAML   `cmd:""                    help:"Format as YAML."`
}

// formatter writes a document in one output format.
type formatter func(d *lang.Document, ctx context.Context, w io.Writer, indent int) error

// FormatOptions are the flags shared by the fmt subcommands.
type FormatOptions struct {
	Indent int    `default:"2"                      help:"Indent width for formatted output." short:"i"`
	Write  bool   `help:"Replace the source file atomically; a different format replaces its extension." short:"w"`
	Source string `arg:""      default:"-"          help:"Source document, or '-' for stdin."              name:"source"`
}

// Native formats a document in the folio document language.
type Native struct {
	FormatOptions `embed:""`
}

// Run executes the fmt native command.
func (f *Native) Run(ctx context.Context) error {
	return f.run(ctx, "native", ".fol", (*lang.Document).Format)
}

// JSON formats a document as JSON.
type JSON struct {
	FormatOptions `embed:""`
}

// Run executes the fmt json command.
func (f *JSON) Run(ctx context.Context) error {
	return f.run(ctx, "json", ".json", (*lang.Document).FormatJSON)
}

// YAML formats a document as YAML.
type YAML struct {
	FormatOptions `embed:""`
}

// Run executes the fmt yaml command.
func (f *YAML) Run(ctx context.Context) error {
	return f.run(ctx, "yaml", ".yaml", (*lang.Document).FormatYAML)
}

func (f *FormatOptions) run(ctx context.Context, name, ext string, write formatter) error {
	if f.Write && f.Source == "-" {
		return ErrWriteStdin
	}

	doc, err := f.read(ctx)
	if err != nil {
		return ErrFormat.Wrap(err).With(slog.String("format", name))
	}

	var buf bytes.Buffer
	if err := write(doc, ctx, &buf, f.Indent); err != nil {
		return ErrFormat.Wrap(err).With(slog.String("format", name))
	}

	if !f.Write {
		_, err := buf.WriteTo(stdoutFrom(ctx))

		return err
	}

	dst := strings.TrimSuffix(f.Source, filepath.Ext(f.Source)) + ext
	if err := atomic.WriteFile(dst, &buf); err != nil {
		return ErrFormat.Wrap(err).With(slog.String("path", dst))
	}

	log.DebugContext(ctx, "formatted document",
		slog.String("source", f.Source),
		slog.String("path", dst),
		slog.String("format", name))

	return nil
}

// read parses the source. Documents in the folio language (and JSON) are
// parsed as written; other formats are loaded the way views see them.
func (f *FormatOptions) read(ctx context.Context) (*lang.Document, error) {
	if f.Source == "-" {
		return lang.ParseReader(ctx, stdinFrom(ctx), lang.WithPath("<stdin>"))
	}

	switch strings.ToLower(filepath.Ext(f.Source)) {
	case ".fol", ".json":
		return lang.ParseFile(ctx, f.Source)
	}

	return source.Load(ctx, os.DirFS(filepath.Dir(f.Source)), filepath.Base(f.Source))
}
