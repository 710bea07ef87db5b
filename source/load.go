package source

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/readahead"

	"github.com/ardnew/folio/lang"
)

// Errors returned by [Load].
var (
	ErrRead                 = lang.NewError("failed to read source")
	ErrDecode               = lang.NewError("failed to decode source")
	ErrExpectedObject       = lang.NewError("source root must be an object")
	ErrUnsupportedExtension = lang.NewError("unsupported source extension")
)

// IDKey is the field set to the file stem on loaded objects that lack it.
const IDKey = "id"

type decoder func(ctx context.Context, name string, data []byte, opts ...lang.Option) (lang.Value, lang.Docstring, error)

var decoders = map[string]decoder{
	".fol":      decodeNative,
	".json":     decodeNative,
	".yaml":     decodeYAML,
	".yml":      decodeYAML,
	".md":       decodeMarkdown,
	".markdown": decodeMarkdown,
}

// Extensions returns the file extensions [Load] accepts, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}

	slices.Sort(exts)

	return exts
}

// Load reads and decodes the document at name in fsys, choosing the decoder
// by extension:
//
//	.fol .json       folio document language
//	.yaml .yml       YAML; the root must be a mapping
//	.md .markdown    optional YAML front matter between "---" lines; the
//	                 body is stored as "content"
//
// Objects get an "id" field holding the file stem unless they already have
// one. opts apply to the folio parser.
func Load(ctx context.Context, fsys fs.FS, name string, opts ...lang.Option) (*lang.Document, error) {
	ext := strings.ToLower(path.Ext(name))

	decode, ok := decoders[ext]
	if !ok {
		return nil, ErrUnsupportedExtension.With(
			slog.String("path", name),
			slog.String("extension", ext))
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("path", name))
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("path", name))
	}

	root, doc, err := decode(ctx, name, data, opts...)
	if err != nil {
		return nil, err
	}

	if root.Kind() == lang.KindObject {
		if _, ok := root.Get(IDKey); !ok {
			root = root.With(IDKey, lang.String(stem(name)))
		}
	}

	return lang.NewDocument(name, root, doc...), nil
}

func stem(name string) string {
	base := path.Base(name)

	return strings.TrimSuffix(base, path.Ext(base))
}

// decodeNative goes through the parse cache, so a file selected by several
// views is parsed once.
func decodeNative(ctx context.Context, name string, data []byte, opts ...lang.Option) (lang.Value, lang.Docstring, error) {
	doc, err := lang.ParseReader(ctx, bytes.NewReader(data), append([]lang.Option{lang.WithPath(name)}, opts...)...)
	if err != nil {
		return lang.Value{}, nil, err
	}

	return doc.Root(), doc.Doc(), nil
}

func decodeYAML(_ context.Context, name string, data []byte, _ ...lang.Option) (lang.Value, lang.Docstring, error) {
	root, err := yamlObject(name, data)
	if err != nil {
		return lang.Value{}, nil, err
	}

	if root.IsNull() {
		return lang.Value{}, nil, ErrExpectedObject.With(
			slog.String("path", name),
			slog.String("got", "null"))
	}

	return root, nil, nil
}

// yamlObject decodes a YAML mapping, keeping key order. An empty document
// decodes to null.
func yamlObject(name string, data []byte) (lang.Value, error) {
	var x any
	if err := yaml.UnmarshalWithOptions(data, &x, yaml.UseOrderedMap()); err != nil {
		return lang.Value{}, ErrDecode.Wrap(err).With(slog.String("path", name))
	}

	v, err := lang.FromNative(x)
	if err != nil {
		return lang.Value{}, ErrDecode.Wrap(err).With(slog.String("path", name))
	}

	if v.Kind() != lang.KindObject && !v.IsNull() {
		return lang.Value{}, ErrExpectedObject.With(
			slog.String("path", name),
			slog.String("got", v.Kind().String()))
	}

	return v, nil
}
