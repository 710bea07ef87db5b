// Package config loads the project file describing a folio site.
//
// A project file is folio.yaml (or folio.yml) or folio.fol at the project
// root. Both decode to the same document model, so the keys are identical:
//
//	views      view script globs, in build order   (default "views/*.view")
//	templates  template directories                (default "templates")
//	output     output directory                    (default ".")
//	onError    "skip" or "abort"                   (default "skip")
//	timeout    per-invocation script budget, e.g. "2s" or milliseconds
//	workers    concurrent parses, renders and writes (0 = GOMAXPROCS)
//	maxDepth   script call depth limit
//	config     arbitrary data visible to scripts and templates as config
//
// Relative paths are relative to the project root.
package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ardnew/mung"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/folio/build"
	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
	"github.com/ardnew/folio/pkg"
	"github.com/ardnew/folio/script"
)

// Project file names, in lookup order.
var Files = []string{"folio.yaml", "folio.yml", "folio.fol"}

// Defaults for unset keys.
const (
	DefaultViews     = "views/*.view"
	DefaultTemplates = "templates"
	DefaultOutput    = "."
)

// EnvTemplatePath names the PATH-like variable listing extra template
// directories.
var EnvTemplatePath = pkg.EnvVar("template-path")

// Errors returned while loading a project.
var (
	ErrRead    = lang.NewError("failed to read project file")
	ErrDecode  = lang.NewError("failed to decode project file")
	ErrInvalid = lang.NewError("invalid project setting")
)

// Project is a decoded project file.
type Project struct {
	Config    lang.Value
	Root      string // directory holding the project file
	File      string // project file path, empty when defaults are in use
	Output    string
	Views     []string
	Templates []string
	Timeout   time.Duration
	Workers   int
	MaxDepth  int
	OnError   build.Policy
}

// Default returns the project settings used when root has no project file.
func Default(root string) *Project {
	return &Project{
		Config:    lang.MustObject(),
		Root:      root,
		Output:    DefaultOutput,
		Views:     []string{DefaultViews},
		Templates: []string{DefaultTemplates},
		Timeout:   script.DefaultTimeout,
		MaxDepth:  script.DefaultMaxDepth,
		OnError:   build.DefaultPolicy,
	}
}

// Load reads the first project file found in root. Without one, Load
// returns [Default].
func Load(ctx context.Context, root string) (*Project, error) {
	for _, name := range Files {
		path := filepath.Join(root, name)

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, ErrRead.Wrap(err).With(slog.String("path", path))
		}

		p, err := Decode(ctx, path, data)
		if err != nil {
			return nil, err
		}

		p.Root = root

		log.DebugContext(ctx, "project loaded", slog.Any("project", p))

		return p, nil
	}

	log.DebugContext(ctx, "no project file, using defaults", slog.String("root", root))

	return Default(root), nil
}

// Decode decodes a project file. The format follows the extension of name:
// .yaml and .yml are YAML, anything else is the folio document language.
func Decode(ctx context.Context, name string, data []byte) (*Project, error) {
	var (
		root lang.Value
		err  error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		root, err = decodeYAML(data)
	default:
		var doc *lang.Document

		doc, err = lang.Parse(ctx, data, lang.WithPath(name))
		if err == nil {
			root = doc.Root()
		}
	}

	if err != nil {
		return nil, ErrDecode.Wrap(err).With(slog.String("path", name))
	}

	p := Default(filepath.Dir(name))
	p.File = name

	if err := p.apply(root); err != nil {
		return nil, err.With(slog.String("path", name))
	}

	return p, nil
}

func decodeYAML(data []byte) (lang.Value, error) {
	var raw any
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.UseOrderedMap()); err != nil {
		return lang.Value{}, err
	}

	return lang.FromNative(raw)
}

func (p *Project) apply(root lang.Value) *lang.Error {
	if root.IsNull() {
		return nil
	}

	if root.Kind() != lang.KindObject {
		return ErrInvalid.With(
			slog.String("reason", "project must be an object"),
			slog.String("got", root.Kind().String()))
	}

	for _, prop := range root.Props() {
		key, v := prop.Key(), prop.Value()

		var err error

		switch key {
		case "views":
			p.Views, err = stringList(v)
		case "templates":
			p.Templates, err = stringList(v)
		case "output":
			p.Output, err = text(v)
		case "onError":
			var s string
			if s, err = text(v); err == nil {
				p.OnError, err = build.ParsePolicy(s)
			}
		case "timeout":
			p.Timeout, err = duration(v)
		case "workers":
			p.Workers, err = count(v, 0)
		case "maxDepth":
			p.MaxDepth, err = count(v, 1)
		case "config":
			p.Config = v
		default:
			err = errors.New("unknown key")
		}

		if err != nil {
			return ErrInvalid.Wrap(err).With(slog.String("key", key))
		}
	}

	return nil
}

func text(v lang.Value) (string, error) {
	s, ok := v.Text()
	if !ok || s == "" {
		return "", errors.New("want a non-empty string, got " + v.Kind().String())
	}

	return s, nil
}

func stringList(v lang.Value) ([]string, error) {
	if v.Kind() == lang.KindString {
		s, err := text(v)

		return []string{s}, err
	}

	if v.Kind() != lang.KindArray || v.Len() == 0 {
		return nil, errors.New("want a string or a non-empty list of strings")
	}

	list := make([]string, 0, v.Len())

	for _, e := range v.Elems() {
		s, err := text(e)
		if err != nil {
			return nil, err
		}

		list = append(list, s)
	}

	return list, nil
}

func duration(v lang.Value) (time.Duration, error) {
	var (
		d   time.Duration
		err error
	)

	switch v.Kind() {
	case lang.KindInt:
		ms, _ := v.Int()
		d = time.Duration(ms) * time.Millisecond
	case lang.KindString:
		s, _ := v.Text()
		d, err = time.ParseDuration(s)
	default:
		return 0, errors.New("want a duration string or milliseconds")
	}

	if err == nil && d <= 0 {
		err = errors.New("duration must be positive")
	}

	return d, err
}

func count(v lang.Value, minimum int64) (int, error) {
	n, ok := v.Int()
	if !ok || n < minimum {
		return 0, errors.New("want an integer of at least " + strconv.FormatInt(minimum, 10))
	}

	return int(n), nil
}

// Path resolves name against the project root. Absolute names are returned
// as is.
func (p *Project) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(p.Root, filepath.FromSlash(name))
}

// TemplatePath returns the template directories to search: those listed in
// env, a PATH-like list such as the value of [EnvTemplatePath], followed by
// the project's own. Duplicates and empty entries are dropped.
func (p *Project) TemplatePath(env string) []string {
	dirs := make([]string, len(p.Templates))
	for i, dir := range p.Templates {
		dirs[i] = p.Path(dir)
	}

	var extra []string

	for dir := range strings.SplitSeq(env, string(os.PathListSeparator)) {
		if dir = strings.TrimSpace(dir); dir != "" {
			extra = append(extra, dir)
		}
	}

	// mung prepends separate prefix items in reverse; one delimited item
	// keeps the order of the entries inside it.
	merged := mung.Make(
		mung.WithSubjectItems(strings.Join(dirs, string(os.PathListSeparator))),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(strings.Join(extra, string(os.PathListSeparator))),
	).String()

	var (
		out  []string
		seen = make(map[string]bool)
	)

	for dir := range strings.SplitSeq(merged, string(os.PathListSeparator)) {
		if dir == "" || seen[filepath.Clean(dir)] {
			continue
		}

		seen[filepath.Clean(dir)] = true
		out = append(out, dir)
	}

	return out
}

// ScriptOptions returns the sandbox options the project selects.
func (p *Project) ScriptOptions() []script.Option {
	return []script.Option{
		script.WithConfig(p.Config),
		script.WithTimeout(p.Timeout),
		script.WithMaxDepth(p.MaxDepth),
	}
}

// LogValue implements slog.LogValuer.
func (p *Project) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("root", p.Root),
		slog.String("file", p.File),
		slog.Any("views", p.Views),
		slog.Any("templates", p.Templates),
		slog.String("output", p.Output),
		slog.String("on_error", p.OnError.String()),
		slog.Duration("timeout", p.Timeout),
		slog.Int("workers", p.Workers),
		slog.Int("max_depth", p.MaxDepth),
	)
}
