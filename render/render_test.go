package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/folio/lang"
)

func item(t *testing.T, src string) lang.Value {
	t.Helper()

	doc, err := lang.ParseString(context.Background(), src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}

	return doc.Root()
}

func mustRenderer(t *testing.T, templates map[string]string, opts ...Option) *Renderer {
	t.Helper()

	r := New(opts...)
	for name, src := range templates {
		if err := r.Register(name, []byte(src)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	return r
}

func TestRenderer_Render(t *testing.T) {
	config := lang.MustObject(lang.Prop("site-name", lang.String("Folio")))

	r := mustRenderer(t, map[string]string{
		"post.html":         `{% include "partials/head.html" %}<h1>{{ title }}</h1>{{ date }}`,
		"partials/head.html": `<title>{{ config.site_name }}</title>`,
		"tags.html":         `{% for tag in tags %}[{{ tag }}]{% endfor %}`,
		"escape.html":       `{{ title }}`,
		"hyphen.html":       `{{ read_time }}`,
		"year.html":         `{{ date.Year }}`,
	}, WithConfig(config))

	tests := []struct {
		name string
		ref  string
		item string
		want string
	}{
		{"fields and include", "post.html", `{title: "Hello", date: 2024-07-04}`, "<title>Folio</title><h1>Hello</h1>2024-07-04"},
		{"loop", "tags.html", `{tags: ["a", "b"]}`, "[a][b]"},
		{"autoescape", "escape.html", `{title: "<b>"}`, "&lt;b&gt;"},
		{"hyphenated key", "hyphen.html", `{read-time: 5}`, "5"},
		{"date fields", "year.html", `{date: 2024-07-04}`, "2024"},
		{"leading slash", "/tags.html", `{tags: []}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(context.Background(), tt.ref, item(t, tt.item))
			if err != nil {
				t.Fatal(err)
			}

			if string(got) != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderer_Filters(t *testing.T) {
	r := New()

	tests := []struct {
		name string
		src  string
		item string
		want string
	}{
		{"markdown", `{{ body|markdown }}`, `{body: "*hi*"}`, "<p><em>hi</em></p>\n"},
		{"sanitize", `{{ body|sanitize }}`, `{body: "<b>ok</b><script>x</script>"}`, "<b>ok</b>"},
		{"pad", `{{ n|pad:3 }}`, `{n: 7}`, "007"},
		{"pad wide input", `{{ n|pad:2 }}`, `{n: 1234}`, "1234"},
		{"formatDate default", `{{ d|formatDate }}`, `{d: 2024-02-29}`, "2024-02-29"},
		{"formatDate layout", `{{ d|formatDate:"Jan 2, 2006" }}`, `{d: 2024-02-29}`, "Feb 29, 2024"},
		{"formatDate string", `{{ d|formatDate:"02/01/2006" }}`, `{d: "2024-02-29"}`, "29/02/2024"},
		{"formatDateTime", `{{ d|formatDateTime:"15:04 -07:00" }}`, `{d: 2024-02-29T10:30:00+02:00}`, "10:30 +02:00"},
		{"formatDateTime of date", `{{ d|formatDateTime }}`, `{d: 2024-02-29}`, "2024-02-29T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderString(context.Background(), tt.src, item(t, tt.item))
			if err != nil {
				t.Fatal(err)
			}

			if string(got) != tt.want {
				t.Errorf("RenderString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderer_Errors(t *testing.T) {
	r := mustRenderer(t, map[string]string{
		"broken.html": "line one\n{{ x|nosuchfilter }}",
		"filter.html": "{{ d|formatDate }}",
		"ok.html":     "ok",
	})

	tests := []struct {
		name  string
		ref   string
		item  lang.Value
		cause error
		line  int
	}{
		{"not found", "missing.html", lang.MustObject(), ErrNotFound, 0},
		{"syntax", "broken.html", lang.MustObject(), ErrSyntax, 2},
		{"filter input", "filter.html", lang.MustObject(lang.Prop("d", lang.Int(3))), ErrExecute, 1},
		{"not an object", "ok.html", lang.Array(), ErrContext, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(context.Background(), tt.ref, tt.item)
			if !errors.Is(err, tt.cause) {
				t.Fatalf("error = %v, want %v", err, tt.cause)
			}

			var re *Error
			if !errors.As(err, &re) {
				t.Fatalf("error %T is not *Error", err)
			}

			if re.Ref != tt.ref || re.Line != tt.line {
				t.Errorf("error at %s line %d, want %s line %d", re.Ref, re.Line, tt.ref, tt.line)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Render(ctx, "ok.html", lang.MustObject()); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled error = %v", err)
	}
}

func TestRenderer_Register(t *testing.T) {
	r := New()

	if err := r.Register("a.html", []byte("one")); err != nil {
		t.Fatal(err)
	}

	if err := r.Register("./a.html", []byte("one")); err != nil {
		t.Errorf("identical re-register error = %v", err)
	}

	err := r.Register("a.html", []byte("two"))
	if !errors.Is(err, ErrTemplateExists) {
		t.Fatalf("conflicting register error = %v, want ErrTemplateExists", err)
	}

	if got, _ := r.Render(context.Background(), "a.html", lang.MustObject()); string(got) != "one" {
		t.Errorf("Render() after conflict = %q, want %q", got, "one")
	}
}

func TestRenderer_AddDir(t *testing.T) {
	write := func(dir, name, src string) {
		t.Helper()

		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	site, theme, clash := t.TempDir(), t.TempDir(), t.TempDir()

	write(site, "post.html", `{% extends "base.html" %}{% block body %}{{ title }}{% endblock %}`)
	write(site, "partials/nav.html", "nav")
	write(site, ".hidden/skip.html", "skip")
	write(theme, "base.html", `<main>{% block body %}{% endblock %}</main>`)
	write(theme, "partials/nav.html", "nav")
	write(clash, "base.html", "different")

	r := New()

	for _, dir := range []string{site, theme} {
		if err := r.AddDir(dir); err != nil {
			t.Fatalf("AddDir(%s): %v", dir, err)
		}
	}

	want := []string{"base.html", "partials/nav.html", "post.html"}
	if diff := cmp.Diff(want, r.Templates()); diff != "" {
		t.Errorf("Templates() mismatch (-want +got):\n%s", diff)
	}

	got, err := r.Render(context.Background(), "post.html", item(t, `{title: "Hi"}`))
	if err != nil {
		t.Fatal(err)
	}

	if string(got) != "<main>Hi</main>" {
		t.Errorf("Render() = %q", got)
	}

	if err := r.AddDir(clash); !errors.Is(err, ErrTemplateExists) {
		t.Errorf("AddDir(clash) error = %v, want ErrTemplateExists", err)
	}

	if err := r.AddDir(filepath.Join(site, "nope")); !errors.Is(err, ErrRead) {
		t.Errorf("AddDir(missing) error = %v, want ErrRead", err)
	}
}

func TestContextValue(t *testing.T) {
	got := contextValue(map[string]any{
		"a-b":   1,
		"a_b":   2,
		"x-y-z": map[string]any{"in-ner": []any{map[string]any{"k-v": 3}}},
	})

	want := map[string]any{
		"a_b":   2,
		"x_y_z": map[string]any{"in_ner": []any{map[string]any{"k_v": 3}}},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("contextValue mismatch (-want +got):\n%s", diff)
	}
}
