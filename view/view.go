// Package view binds a view script to the hooks the build pipeline calls:
//
//	select         glob pattern, or list of patterns, naming source documents
//	process        transform one document (process item) or all of them
//	               (process ...items); optional
//	template       template name, constant or per item
//	outputPattern  output path with {{ field }} placeholders, constant or per item
package view

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/script"
)

// Hook names.
const (
	HookSelect        = "select"
	HookTemplate      = "template"
	HookOutputPattern = "outputPattern"
	HookProcess       = "process"
)

// Errors wrapped by the [*script.Error] values this package returns.
var (
	ErrMissingHook = lang.NewError("missing required hook")
	ErrHookShape   = lang.NewError("hook has unsupported parameters")
	ErrHookResult  = lang.NewError("hook returned unexpected value")
	ErrRead        = lang.NewError("failed to read view script")
)

// View is a loaded view script. Its hooks and mode are fixed at load.
type View struct {
	sandbox *script.Sandbox
	name    string
	path    string
	selects []string
	mode    Mode
}

// Load reads a view script from path. The view is named after the file stem.
func Load(ctx context.Context, path string, opts ...script.Option) (*View, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("path", path))
	}

	v, err := New(ctx, Name(path), src, opts...)
	if err != nil {
		return nil, err
	}

	v.path = path

	return v, nil
}

// Name returns the view name for a script path: its base name without
// extension.
func Name(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// New compiles a view script and checks its hooks.
func New(ctx context.Context, name string, src []byte, opts ...script.Option) (*View, error) {
	sb, err := script.New(ctx, name, src, opts...)
	if err != nil {
		return nil, err
	}

	v := &View{sandbox: sb, name: name}

	for _, hook := range []string{HookSelect, HookTemplate, HookOutputPattern} {
		shape, ok := sb.Shape(hook)
		if !ok {
			return nil, v.fail(script.ErrCompile, hook, ErrMissingHook)
		}

		if shape == script.ShapeConst || shape == script.ShapeItem && hook != HookSelect {
			continue
		}

		return nil, v.fail(script.ErrCompile, hook,
			ErrHookShape.With(slog.String("shape", shape.String())))
	}

	shape, defined := sb.Shape(HookProcess)

	mode, ok := modeOf(shape, defined)
	if !ok {
		return nil, v.fail(script.ErrCompile, HookProcess,
			ErrHookShape.With(slog.String("shape", shape.String())))
	}

	v.mode = mode

	sel, err := sb.Call(ctx, HookSelect)
	if err != nil {
		return nil, err
	}

	if v.selects, err = v.patterns(sel); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *View) fail(kind *lang.Error, hook string, err error) error {
	return &script.Error{Kind: kind, Err: err, View: v.name, Hook: hook}
}

// patterns accepts a string or a non-empty list of strings.
func (v *View) patterns(sel lang.Value) ([]string, error) {
	if s, ok := sel.Text(); ok {
		return []string{s}, nil
	}

	var out []string

	for _, e := range sel.Elems() {
		s, ok := e.Text()
		if !ok {
			break
		}

		out = append(out, s)
	}

	if sel.Kind() != lang.KindArray || len(out) == 0 || len(out) != sel.Len() {
		return nil, v.fail(script.ErrRuntime, HookSelect,
			ErrHookResult.With(
				slog.String("want", "string or list of strings"),
				slog.String("got", sel.Kind().String())))
	}

	return out, nil
}

// Name returns the view name.
func (v *View) Name() string { return v.name }

// Path returns the script path, or "" for views built with [New].
func (v *View) Path() string { return v.path }

// Mode reports how process consumes documents.
func (v *View) Mode() Mode { return v.mode }

// Select returns the source glob patterns.
func (v *View) Select() []string { return append([]string(nil), v.selects...) }

// Definitions returns the script's definitions in declaration order.
func (v *View) Definitions() []script.Definition { return v.sandbox.Definitions() }

// ProcessItem runs process on the document at ordinal index. It returns the
// resulting items: none when process returns null, one for an object, each
// element for a list. Without a process hook the document passes through.
func (v *View) ProcessItem(ctx context.Context, index int, doc lang.Value) ([]lang.Value, error) {
	if !v.sandbox.Has(HookProcess) {
		return v.items(doc)
	}

	out, err := v.sandbox.CallItem(ctx, HookProcess, index, doc)
	if err != nil {
		return nil, err
	}

	return v.items(out)
}

// ProcessAll runs a collection process hook once over docs, in order.
func (v *View) ProcessAll(ctx context.Context, docs []lang.Value) ([]lang.Value, error) {
	out, err := v.sandbox.Call(ctx, HookProcess, docs...)
	if err != nil {
		return nil, err
	}

	return v.items(out)
}

func (v *View) items(out lang.Value) ([]lang.Value, error) {
	switch out.Kind() {
	case lang.KindNull:
		return nil, nil

	case lang.KindObject:
		return []lang.Value{out}, nil

	case lang.KindArray:
		elems := out.Elems()
		for i, e := range elems {
			if e.Kind() != lang.KindObject {
				return nil, v.fail(script.ErrRuntime, HookProcess,
					ErrHookResult.With(
						slog.String("want", "object"),
						slog.Int("element", i),
						slog.String("got", e.Kind().String())))
			}
		}

		return elems, nil
	}

	return nil, v.fail(script.ErrRuntime, HookProcess,
		ErrHookResult.With(
			slog.String("want", "null, object or list of objects"),
			slog.String("got", out.Kind().String())))
}

// Template returns the template name for the result item at ordinal index.
func (v *View) Template(ctx context.Context, index int, item lang.Value) (string, error) {
	return v.text(ctx, HookTemplate, index, item)
}

// OutputPattern returns the output path pattern for the result item at
// ordinal index.
func (v *View) OutputPattern(ctx context.Context, index int, item lang.Value) (string, error) {
	return v.text(ctx, HookOutputPattern, index, item)
}

func (v *View) text(ctx context.Context, hook string, index int, item lang.Value) (string, error) {
	var (
		out lang.Value
		err error
	)

	if shape, _ := v.sandbox.Shape(hook); shape == script.ShapeConst {
		out, err = v.sandbox.Call(ctx, hook)
	} else {
		out, err = v.sandbox.CallItem(ctx, hook, index, item)
	}

	if err != nil {
		return "", err
	}

	s, ok := out.Text()
	if !ok {
		return "", v.fail(script.ErrRuntime, hook,
			ErrHookResult.With(
				slog.String("want", "string"),
				slog.String("got", out.Kind().String())))
	}

	return s, nil
}

// LogValue implements slog.LogValuer.
func (v *View) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", v.name),
		slog.String("mode", v.mode.String()),
		slog.Any("select", v.selects),
	)
}
