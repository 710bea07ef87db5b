package build

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"
)

// claim records which view and item first produced an output path.
type claim struct {
	view   string
	source string
	item   int
}

// claims tracks output paths across a whole build.
type claims struct {
	mu    sync.Mutex
	paths map[string]claim
}

func newClaims() *claims {
	return &claims{paths: make(map[string]claim)}
}

// take reserves out.Path for view. A path already reserved, by any view,
// is [ErrCollision].
func (c *claims) take(view string, out OutputItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.paths[out.Path]; ok {
		return ErrCollision.With(
			slog.String("path", out.Path),
			slog.String("claimed_by_view", prev.view),
			slog.String("claimed_by_source", prev.source),
			slog.Int("claimed_by_item", prev.item))
	}

	c.paths[out.Path] = claim{view: view, source: out.Source, item: out.Item}

	return nil
}

// writeAll writes items below root with at most workers concurrent writes.
// Each file is replaced atomically; missing directories are created. The
// first failure cancels writes not yet started.
func writeAll(ctx context.Context, root string, items []OutputItem, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return writeFile(filepath.Join(root, filepath.FromSlash(item.Path)), item.Data)
		})
	}

	return g.Wait()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ErrWrite.Wrap(err).With(slog.String("path", path))
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return ErrWrite.Wrap(err).With(slog.String("path", path))
	}

	return nil
}
