package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/render"
	"github.com/ardnew/folio/script"
	"github.com/ardnew/folio/view"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}

func mustView(t *testing.T, name, src string, opts ...script.Option) *view.View {
	t.Helper()

	v, err := view.New(context.Background(), name, []byte(src), opts...)
	if err != nil {
		t.Fatalf("view %s: %v", name, err)
	}

	return v
}

type fixture struct {
	src, out string
	renderer *render.Renderer
}

func newFixture(t *testing.T, sources, templates map[string]string) fixture {
	t.Helper()

	f := fixture{src: t.TempDir(), out: t.TempDir(), renderer: render.New()}

	writeFiles(t, f.src, sources)

	for name, src := range templates {
		if err := f.renderer.Register(name, []byte(src)); err != nil {
			t.Fatal(err)
		}
	}

	return f
}

func (f fixture) build(t *testing.T, views []*view.View, opts ...Option) (*Report, error) {
	t.Helper()

	b, err := New(views, f.renderer,
		append([]Option{WithSourceDir(f.src), WithOutput(f.out), WithWorkers(4)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	return b.Build(context.Background())
}

func TestBuild_PublishedIndex(t *testing.T) {
	f := newFixture(t,
		map[string]string{
			"posts/first.md":  "---\ntitle: First\ndate: \"2022-01-01\"\npublished: true\n---\nHello.\n",
			"posts/second.md": "---\ntitle: Second\ndate: \"2022-02-01\"\npublished: false\n---\nLater.\n",
		},
		map[string]string{
			"index.html": `{% for post in posts %}<li>{{ post.title }}</li>{% endfor %}`,
		})

	v := mustView(t, "index", `
		select: "posts/*.md"
		template: "index.html"
		outputPattern: "public/index.html"
		process ...posts: {posts: sortWith(filter(posts, #.published), byDateDesc)}
		byDateDesc a b: compareDates(b.date, a.date)
	`)

	report, err := f.build(t, []*view.View{v})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"public/index.html"}, report.Written()); diff != "" {
		t.Errorf("Written() mismatch (-want +got):\n%s", diff)
	}

	if got := readFile(t, f.out, "public/index.html"); got != "<li>First</li>" {
		t.Errorf("index.html = %q", got)
	}

	if !report.OK() || report.Views[0].Documents != 2 || report.Views[0].Items != 1 {
		t.Errorf("report = %+v", report.Views[0])
	}
}

func TestBuild_PerItemPaths(t *testing.T) {
	f := newFixture(t,
		map[string]string{
			"posts/hello.fol": `{title: "Hello", date: 2022-01-15}`,
			"posts/world.fol": `{title: "World", date: 2023-11-02}`,
		},
		map[string]string{
			"post.html": `<h1>{{ title }}</h1>`,
		})

	v := mustView(t, "posts", `
		select: "posts/*.fol"
		template: "post.html"
		outputPattern: "public/{{ year }}/{{ month }}/{{ id }}/index.html"
		process post: {
		  id: post.id,
		  title: post.title,
		  year: string(post.date.year),
		  month: pad(post.date.month, "0", 2)
		}
	`)

	report, err := f.build(t, []*view.View{v})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"public/2022/01/hello/index.html", "public/2023/11/world/index.html"}
	if diff := cmp.Diff(want, report.Written()); diff != "" {
		t.Errorf("Written() mismatch (-want +got):\n%s", diff)
	}

	if got := readFile(t, f.out, want[1]); got != "<h1>World</h1>" {
		t.Errorf("%s = %q", want[1], got)
	}
}

func TestBuild_ItemFailuresAreIsolated(t *testing.T) {
	f := newFixture(t,
		map[string]string{
			"a.fol": `{slug: "a", bad: false}`,
			"b.fol": `{slug: "b", bad: true}`,
			"c.fol": `{bad: false}`,
			"d.fol": `{slug: "d", bad: false, layout: "missing.html"}`,
			"e.fol": `{slug: "e", bad: false`,
		},
		map[string]string{"page.html": "{{ slug }}"})

	v := mustView(t, "pages", `
		select: "*.fol"
		template p: p.layout ?? "page.html"
		outputPattern: "{{ slug }}.html"
		process p: p.bad ? int("x") : p
	`)

	report, err := f.build(t, []*view.View{v})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if diff := cmp.Diff([]string{"a.html"}, report.Written()); diff != "" {
		t.Errorf("Written() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		source string
		want   error
	}{
		{"e.fol", lang.ErrParse},
		{"b.fol", script.ErrRuntime},
		{"c.fol", ErrOutputPath},
		{"d.fol", render.ErrNotFound},
	}

	failures := report.Failures()
	if len(failures) != len(tests) {
		t.Fatalf("got %d failures, want %d: %v", len(failures), len(tests), failures)
	}

	for i, tt := range tests {
		if failures[i].Source != tt.source || !errors.Is(failures[i], tt.want) {
			t.Errorf("failure %d = %v, want %s: %v", i, failures[i], tt.source, tt.want)
		}
	}

	if report.OK() {
		t.Error("OK() = true with failures")
	}
}

func TestBuild_AbortPolicy(t *testing.T) {
	f := newFixture(t,
		map[string]string{
			"a.fol": `{id: "a"}`,
			"b.fol": `{a: 1, a: 2}`,
		},
		map[string]string{"page.html": "{{ id }}"})

	v := mustView(t, "pages", "select: \"*.fol\"\ntemplate: \"page.html\"\noutputPattern: \"{{ id }}.html\"")

	report, err := f.build(t, []*view.View{v}, WithPolicy(PolicyAbort))
	if !errors.Is(err, ErrViewAborted) || !errors.Is(err, lang.ErrDuplicateProperty) {
		t.Fatalf("Build() error = %v", err)
	}

	var fail *Failure
	if !errors.As(err, &fail) || fail.Source != "b.fol" {
		t.Errorf("failure = %v, want source b.fol", fail)
	}

	if len(report.Written()) != 0 {
		t.Errorf("Written() = %v after abort", report.Written())
	}

	if _, err := os.Stat(filepath.Join(f.out, "a.html")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("a.html written by aborted view: %v", err)
	}
}

func TestBuild_CollectionFailureAbortsView(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.fol": `{n: 1}`, "b.fol": `{n: 2}`},
		map[string]string{"list.html": "{{ n }}"})

	broken := mustView(t, "broken", `
		select: "*.fol"
		template p: p.n == 2 ? "missing.html" : "list.html"
		outputPattern: "broken/{{ n }}.html"
		process ...ps: ps
	`)

	slow := mustView(t, "slow", `
		select: "*.fol"
		template: "list.html"
		outputPattern: "slow.html"
		process ...ps: len(ps) > 0 ? loop(0) : nil
		loop n: loop(n + 1)
	`, script.WithMaxDepth(8))

	ok := mustView(t, "ok", `
		select: "*.fol"
		template: "list.html"
		outputPattern: "ok/{{ n }}.html"
		process ...ps: ps
	`)

	report, err := f.build(t, []*view.View{broken, slow, ok})
	if !errors.Is(err, render.ErrNotFound) || !errors.Is(err, script.ErrMaxDepthExceeded) {
		t.Fatalf("Build() error = %v", err)
	}

	if !report.Views[0].Aborted() || !report.Views[1].Aborted() || report.Views[2].Aborted() {
		t.Errorf("aborted = %v %v %v", report.Views[0].Aborted(), report.Views[1].Aborted(), report.Views[2].Aborted())
	}

	if diff := cmp.Diff([]string{"ok/1.html", "ok/2.html"}, report.Written()); diff != "" {
		t.Errorf("Written() mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(f.out, "broken")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("aborted view wrote output: %v", err)
	}
}

func TestBuild_Collisions(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.fol": `{slug: "same"}`, "b.fol": `{slug: "same"}`},
		map[string]string{"one.html": "one", "two.html": "two"})

	first := mustView(t, "first", "select: \"a.fol\"\ntemplate: \"one.html\"\noutputPattern: \"{{ slug }}.html\"")
	second := mustView(t, "second", "select: \"*.fol\"\ntemplate: \"two.html\"\noutputPattern: \"{{ slug }}.html\"")

	report, err := f.build(t, []*view.View{first, second})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"same.html"}, report.Written()); diff != "" {
		t.Errorf("Written() mismatch (-want +got):\n%s", diff)
	}

	if got := readFile(t, f.out, "same.html"); got != "one" {
		t.Errorf("same.html = %q, want the first view's output", got)
	}

	failures := report.Views[1].Failures
	if len(failures) != 2 {
		t.Fatalf("second view failures = %v", failures)
	}

	for _, fl := range failures {
		if !errors.Is(fl, ErrCollision) {
			t.Errorf("failure = %v, want ErrCollision", fl)
		}
	}
}

func TestBuild_DryRunAndIdempotence(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.fol": `{id: "a", body: "x"}`},
		map[string]string{"page.html": "<p>{{ body }}</p>"})

	v := mustView(t, "pages", "select: \"*.fol\"\ntemplate: \"page.html\"\noutputPattern: \"out/{{ id }}.html\"")

	report, err := f.build(t, []*view.View{v}, WithDryRun(true))
	if err != nil {
		t.Fatal(err)
	}

	if !report.DryRun || len(report.Written()) != 1 {
		t.Errorf("dry run report = %+v", report)
	}

	if _, err := os.Stat(filepath.Join(f.out, "out")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run wrote output: %v", err)
	}

	for range 2 {
		if _, err := f.build(t, []*view.View{v}); err != nil {
			t.Fatal(err)
		}

		if got := readFile(t, f.out, "out/a.html"); got != "<p>x</p>" {
			t.Errorf("out/a.html = %q", got)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	a := mustView(t, "a", "select: \"*\"\ntemplate: \"t\"\noutputPattern: \"o\"")

	if _, err := New(nil, render.New()); !errors.Is(err, ErrNoViews) {
		t.Errorf("New(nil) error = %v, want ErrNoViews", err)
	}

	if _, err := New([]*view.View{a, a}, render.New()); !errors.Is(err, ErrViewExists) {
		t.Errorf("New(dup) error = %v, want ErrViewExists", err)
	}
}

func TestLoadViews(t *testing.T) {
	dir := t.TempDir()
	src := "select: \"*\"\ntemplate: \"t\"\noutputPattern: \"o\""

	writeFiles(t, dir, map[string]string{
		"views/a.view":    src,
		"views/b.view":    src,
		"more/a.view":     src,
		"broken/bad.view": "select x: x\ntemplate: \"t\"\noutputPattern: \"o\"",
		"views/notes.txt": "not a view",
	})

	views, err := LoadViews(context.Background(), dir, []string{"views/b.view", "views/*.view"})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, v := range views {
		names = append(names, v.Name())
	}

	if diff := cmp.Diff([]string{"b", "a"}, names); diff != "" {
		t.Errorf("view order mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name     string
		patterns []string
		want     error
	}{
		{"duplicate name", []string{"views/*.view", "more/*.view"}, ErrViewExists},
		{"none", []string{"nothing/*.view"}, ErrNoViews},
		{"bad script", []string{"broken/*.view"}, view.ErrHookShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadViews(context.Background(), dir, tt.patterns); !errors.Is(err, tt.want) {
				t.Errorf("LoadViews() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for name := range Policies() {
		p, err := ParsePolicy(strings.ToUpper(name))
		if err != nil || p.String() != name {
			t.Errorf("ParsePolicy(%q) = %v, %v", name, p, err)
		}
	}

	if _, err := ParsePolicy("ignore"); !errors.Is(err, ErrPolicy) {
		t.Errorf("ParsePolicy(ignore) error = %v", err)
	}
}
