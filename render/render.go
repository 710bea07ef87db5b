// Package render turns result items into text through pongo2 templates.
//
// Templates are registered by name, either one at a time with
// [Renderer.Register] or by walking template directories with
// [Renderer.AddDir]. A name registered twice must carry the same content.
// Includes and extends resolve against the same names.
package render

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
)

// Errors wrapped by the [*Error] values this package returns.
var (
	ErrNotFound       = lang.NewError("template not found")
	ErrTemplateExists = lang.NewError("template already registered with different content")
	ErrSyntax         = lang.NewError("template syntax error")
	ErrExecute        = lang.NewError("template execution failed")
	ErrContext        = lang.NewError("template context must be an object")
	ErrRead           = lang.NewError("failed to read template")
)

// Error reports a failure tied to one template. Line and Column are 1-based
// and zero when unknown.
type Error struct {
	Err    error
	Ref    string
	Line   int
	Column int
}

func newError(ref string, err error) *Error {
	e := &Error{Ref: ref, Err: err}

	var perr *pongo2.Error
	if errors.As(err, &perr) {
		e.Line, e.Column = perr.Line, perr.Column
	}

	return e
}

// Error implements the error interface: "template REF line L column C: cause".
func (e *Error) Error() string {
	loc := []string{"template " + e.Ref}

	if e.Line > 0 {
		loc = append(loc, "line "+strconv.Itoa(e.Line), "column "+strconv.Itoa(e.Column))
	}

	return strings.Join(loc, " ") + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("template", e.Ref)}

	if e.Line > 0 {
		attrs = append(attrs, slog.Int("line", e.Line), slog.Int("column", e.Column))
	}

	return slog.GroupValue(append(attrs, slog.Any("cause", e.Err))...)
}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithLogger sets the logger used for trace output.
func WithLogger(logger log.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// WithConfig exposes project configuration to every template as "config".
func WithConfig(config lang.Value) Option {
	return func(r *Renderer) {
		if !config.IsNull() {
			r.set.Globals["config"] = contextValue(lang.ToNative(config))
		}
	}
}

// WithTrimBlocks removes the first newline after a block tag and strips
// whitespace before it on the same line.
func WithTrimBlocks(enable bool) Option {
	return func(r *Renderer) {
		r.set.Options.TrimBlocks = enable
		r.set.Options.LStripBlocks = enable
	}
}

// Renderer renders registered templates. It is safe for concurrent use.
type Renderer struct {
	logger   log.Logger
	registry *registry
	set      *pongo2.TemplateSet

	mu       sync.RWMutex
	compiled map[string]*pongo2.Template
}

// New returns a Renderer with no templates.
func New(opts ...Option) *Renderer {
	registerFilters()

	reg := newRegistry()

	r := &Renderer{
		logger:   log.Default(),
		registry: reg,
		set:      pongo2.NewSet("folio", reg),
		compiled: make(map[string]*pongo2.Template),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a template under name. Registering identical content under
// the same name again is a no-op; different content is [ErrTemplateExists].
func (r *Renderer) Register(name string, src []byte) error {
	return r.register(name, src, "")
}

func (r *Renderer) register(name string, src []byte, origin string) error {
	name = cleanName(name)

	added, err := r.registry.add(name, src, origin)
	if err != nil {
		return &Error{Ref: name, Err: err}
	}

	r.logger.Trace("template registered",
		slog.String("name", name),
		slog.String("origin", origin),
		slog.Bool("deduplicated", !added))

	return nil
}

// AddDir registers every regular file below dir, named by its slash-separated
// path relative to dir. Hidden files and directories are skipped.
func (r *Renderer) AddDir(dir string) error {
	fsys := os.DirFS(dir)

	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return &Error{Ref: name, Err: ErrRead.Wrap(err).With(slog.String("dir", dir))}
		}

		if name != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return &Error{Ref: name, Err: ErrRead.Wrap(err).With(slog.String("dir", dir))}
		}

		return r.register(name, src, path.Join(dir, name))
	})
}

// Templates returns the registered template names in lexical order.
func (r *Renderer) Templates() []string { return r.registry.names() }

// Has reports whether a template is registered under ref.
func (r *Renderer) Has(ref string) bool {
	_, ok := r.registry.lookup(cleanName(ref))

	return ok
}

// Render executes the template ref with the fields of v as its context.
// v must be an object.
func (r *Renderer) Render(ctx context.Context, ref string, v lang.Value) ([]byte, error) {
	ref = cleanName(ref)

	if err := ctx.Err(); err != nil {
		return nil, &Error{Ref: ref, Err: err}
	}

	if v.Kind() != lang.KindObject {
		return nil, &Error{Ref: ref, Err: ErrContext.With(slog.String("got", v.Kind().String()))}
	}

	tpl, err := r.template(ref)
	if err != nil {
		return nil, err
	}

	data, dropped := contextOf(v)
	if len(dropped) > 0 {
		r.logger.DebugContext(ctx, "fields hidden from template",
			slog.String("template", ref),
			slog.Any("keys", dropped))
	}

	out, err := tpl.ExecuteBytes(data)
	if err != nil {
		return nil, newError(ref, ErrExecute.Wrap(err))
	}

	r.logger.TraceContext(ctx, "template rendered",
		slog.String("template", ref),
		slog.Int("bytes", len(out)))

	return out, nil
}

func (r *Renderer) template(ref string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.compiled[ref]
	r.mu.RUnlock()

	if ok {
		return tpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.compiled[ref]; ok {
		return tpl, nil
	}

	if _, ok := r.registry.lookup(ref); !ok {
		return nil, &Error{Ref: ref, Err: ErrNotFound}
	}

	tpl, err := r.set.FromFile(ref)
	if err != nil {
		return nil, newError(ref, ErrSyntax.Wrap(err))
	}

	r.compiled[ref] = tpl

	return tpl, nil
}

// RenderString executes src as an anonymous template. It is used for inline
// templates and tests.
func (r *Renderer) RenderString(ctx context.Context, src string, v lang.Value) ([]byte, error) {
	const ref = "<string>"

	if err := ctx.Err(); err != nil {
		return nil, &Error{Ref: ref, Err: err}
	}

	tpl, err := r.set.FromBytes([]byte(src))
	if err != nil {
		return nil, newError(ref, ErrSyntax.Wrap(err))
	}

	data, _ := contextOf(v)

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(data, &buf); err != nil {
		return nil, newError(ref, ErrExecute.Wrap(err))
	}

	return buf.Bytes(), nil
}

func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
