package lang

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// documentCache stores parse results by [cacheKey]. Documents are immutable,
// so a cached document is shared by every caller.
var documentCache sync.Map

// cacheKey identifies a parse: the options that affect the result, and the
// length and 128-bit hash of the source bytes.
type cacheKey struct {
	path     string
	sum      xxh3.Uint128
	size     int
	maxDepth int
}

func keyOf(data []byte, o options) cacheKey {
	return cacheKey{
		path:     o.path,
		sum:      xxh3.Hash128(data),
		size:     len(data),
		maxDepth: o.maxDepth,
	}
}

type cacheEntry struct {
	once sync.Once
	doc  *Document
	err  error
}

// ParseReader parses a document from r. Results are cached by content, so
// reading the same source again with the same options returns the same
// document without re-parsing.
func ParseReader(ctx context.Context, r io.Reader, opts ...Option) (*Document, error) {
	o := makeOptions(opts...)

	// Wrap reader with async read-ahead so large files are fetched while
	// earlier chunks are copied.
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", o.path))
	}

	o.logger.TraceContext(ctx, "read input",
		slog.String("path", o.path),
		slog.Int("source_bytes", len(data)))

	return parseCached(ctx, data, o, opts...)
}

// ParseFile parses the document stored at path.
func ParseFile(ctx context.Context, path string, opts ...Option) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", path))
	}
	defer f.Close()

	return ParseReader(ctx, f, append([]Option{WithPath(path)}, opts...)...)
}

func parseCached(
	ctx context.Context,
	data []byte,
	o options,
	opts ...Option,
) (*Document, error) {
	key := keyOf(data, o)

	value, hit := documentCache.LoadOrStore(key, new(cacheEntry))
	entry := value.(*cacheEntry)

	o.logger.TraceContext(ctx, "cache lookup",
		slog.String("path", key.path),
		slog.String("source_hash", strconv.FormatUint(key.sum.Hi, 16)+strconv.FormatUint(key.sum.Lo, 16)),
		slog.Bool("cache_hit", hit))

	entry.once.Do(func() {
		entry.doc, entry.err = Parse(ctx, data, opts...)
	})

	return entry.doc, entry.err
}

// ClearCache removes all cached documents.
func ClearCache() {
	documentCache.Clear()
}
