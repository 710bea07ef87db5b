package render

import (
	"bytes"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/folio/lang"
)

// registry is the pongo2 loader behind every Renderer. Templates are
// addressed by registered name only; nothing is read from disk at render
// time.
type registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	origin string
	src    []byte
	hash   uint64
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]entry)}
}

// add stores src under name and reports whether it was new. Content already
// stored under name is compared by hash.
func (r *registry) add(name string, src []byte, origin string) (bool, error) {
	sum := xxh3.Hash(src)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[name]; ok {
		if prev.hash == sum && bytes.Equal(prev.src, src) {
			return false, nil
		}

		return false, ErrTemplateExists.With(
			slog.String("origin", origin),
			slog.String("registered", prev.origin),
			slog.String("hash", strconv.FormatUint(sum, 16)),
			slog.String("registered_hash", strconv.FormatUint(prev.hash, 16)))
	}

	r.entries[name] = entry{origin: origin, src: bytes.Clone(src), hash: sum}

	return true, nil
}

func (r *registry) lookup(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]

	return e, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Abs implements pongo2.TemplateLoader. Names are rooted at the registry, not
// at the including template.
func (r *registry) Abs(_, name string) string { return cleanName(name) }

// Get implements pongo2.TemplateLoader.
func (r *registry) Get(name string) (io.Reader, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, ErrNotFound.With(slog.String("name", name))
	}

	return bytes.NewReader(e.src), nil
}

// contextValue prepares native values for pongo2. Template identifiers
// cannot contain '-', so hyphens in object keys become '_' unless that key
// is already taken. Collisions between hyphenated keys go to the lexically
// first.
func contextValue(x any) any {
	switch v := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))

		var hyphenated []string

		for k, e := range v {
			if strings.Contains(k, "-") {
				hyphenated = append(hyphenated, k)

				continue
			}

			out[k] = contextValue(e)
		}

		slices.Sort(hyphenated)

		for _, k := range hyphenated {
			alias := strings.ReplaceAll(k, "-", "_")
			if _, taken := out[alias]; !taken {
				out[alias] = contextValue(v[k])
			}
		}

		return out

	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = contextValue(e)
		}

		return out
	}

	return x
}

// contextOf returns the template context for an object. Keys that are not
// template identifiers are left out.
func contextOf(v lang.Value) (pongo2.Context, []string) {
	data, _ := contextValue(lang.ToNative(v)).(map[string]any)

	var dropped []string

	ctx := make(pongo2.Context, len(data))
	for k, e := range data {
		if !isIdentifier(k) {
			dropped = append(dropped, k)

			continue
		}

		ctx[k] = e
	}

	slices.Sort(dropped)

	return ctx, dropped
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		c := s[i]
		if c != '_' && !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			return false
		}
	}

	return true
}
