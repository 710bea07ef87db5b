package source

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/adrg/frontmatter"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
)

// ContentKey holds the body of a markdown source.
const ContentKey = "content"

// fence is a YAML block between "---" lines at the top of a markdown source.
// Its raw bytes are captured and decoded by yamlObject, which keeps key
// order.
//
//nolint:gochecknoglobals
var fence = frontmatter.NewFormat("---", "---", captureFront)

func captureFront(data []byte, v any) error {
	if front, ok := v.(*[]byte); ok {
		*front = bytes.Clone(data)
	}

	return nil
}

// splitFrontMatter separates a leading fenced block from the body. Without a
// complete fence the whole input is body.
func splitFrontMatter(data []byte) (front, body []byte, err error) {
	body, err = frontmatter.Parse(bytes.NewReader(data), &front, fence)

	return front, body, err
}

func decodeMarkdown(_ context.Context, name string, data []byte, _ ...lang.Option) (lang.Value, lang.Docstring, error) {
	front, body, err := splitFrontMatter(data)
	if err != nil {
		return lang.Value{}, nil, ErrDecode.Wrap(err).With(slog.String("path", name))
	}

	root := lang.MustObject()

	if len(front) > 0 {
		v, err := yamlObject(name, front)
		if err != nil {
			return lang.Value{}, nil, err
		}

		if !v.IsNull() {
			root = v
		}
	}

	if _, ok := root.Get(ContentKey); ok {
		log.Debug("front matter content replaced by body", slog.String("path", name))
	}

	return root.With(ContentKey, lang.String(string(body))), nil, nil
}
