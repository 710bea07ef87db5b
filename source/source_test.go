package source

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/folio/lang"
)

func tree(files ...string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for _, name := range files {
		fsys[name] = &fstest.MapFile{Data: []byte("{}")}
	}

	return fsys
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.fol", "a.fol", true},
		{"*.fol", "posts/a.fol", false},
		{"posts/*.fol", "posts/a.fol", true},
		{"posts/?.fol", "posts/ab.fol", false},
		{"posts/[ab].fol", "posts/b.fol", true},
		{"**/*.md", "a.md", true},
		{"**/*.md", "x/y/z/a.md", true},
		{"pages/**/*.md", "pages/a.md", true},
		{"pages/**/*.md", "pages/x/y/a.md", true},
		{"pages/**/*.md", "posts/a.md", false},
		{"pages/**", "pages/x/a.md", true},
		{"**/drafts/*", "a/drafts/b", true},
		{"**/drafts/*", "a/drafts/b/c", false},
		{"posts/*.{fol,md}", "posts/a.md", true},
		{"posts/*.{fol,md}", "posts/a.yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.name, func(t *testing.T) {
			got, err := Match(tt.pattern, tt.name)
			if err != nil {
				t.Fatal(err)
			}

			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}

	if _, err := Match("posts/[a.fol", "posts/a.fol"); !errors.Is(err, ErrPattern) {
		t.Errorf("bad pattern error = %v, want ErrPattern", err)
	}
}

func TestGlob(t *testing.T) {
	fsys := tree(
		"posts/b.fol",
		"posts/a.fol",
		"posts/2024/c.fol",
		"pages/about.md",
		"pages/team/people.md",
		"data/site.yaml",
		"index.fol",
	)

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"flat", []string{"posts/*.fol"}, []string{"posts/a.fol", "posts/b.fol"}},
		{"recursive", []string{"posts/**/*.fol"}, []string{"posts/2024/c.fol", "posts/a.fol", "posts/b.fol"}},
		{"root only", []string{"*.fol"}, []string{"index.fol"}},
		{"union without duplicates", []string{"pages/*.md", "pages/**/*.md"}, []string{"pages/about.md", "pages/team/people.md"}},
		{"missing directory", []string{"nope/*.fol"}, []string{}},
		{"literal", []string{"./data/site.yaml"}, []string{"data/site.yaml"}},
		{"alternation", []string{"posts/{a,c}.fol", "{index,nope}.fol"}, []string{"index.fol", "posts/a.fol"}},
		{"directories excluded", []string{"posts/*"}, []string{"posts/a.fol", "posts/b.fol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Glob(fsys, tt.patterns...)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Glob() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := Glob(fsys, "posts/[*.fol"); !errors.Is(err, ErrPattern) {
		t.Errorf("bad pattern error = %v, want ErrPattern", err)
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/hello.fol": {Data: []byte("/// A post.\n{title: \"Hello\", draft: false}")},
		"posts/named.fol": {Data: []byte(`{id: "custom", n: 1}`)},
		"data/list.json":  {Data: []byte(`[1, 2]`)},
		"data/site.yaml":  {Data: []byte("title: Site\nauthors:\n  - ann\n  - bo\nnested:\n  z: 1\n  a: 2\n")},
		"pages/about.md":  {Data: []byte("---\ntitle: About\n---\n# About\n\nText.\n")},
		"pages/plain.md":  {Data: []byte("just text\n")},
		"pages/empty.md":  {Data: []byte("---\n---\nbody\n")},
	}

	tests := []struct {
		name string
		want lang.Value
	}{
		{"posts/hello.fol", lang.MustObject(
			lang.Prop("title", lang.String("Hello")),
			lang.Prop("draft", lang.Bool(false)),
			lang.Prop("id", lang.String("hello")),
		)},
		{"posts/named.fol", lang.MustObject(
			lang.Prop("id", lang.String("custom")),
			lang.Prop("n", lang.Int(1)),
		)},
		{"data/list.json", lang.Array(lang.Int(1), lang.Int(2))},
		{"data/site.yaml", lang.MustObject(
			lang.Prop("title", lang.String("Site")),
			lang.Prop("authors", lang.Array(lang.String("ann"), lang.String("bo"))),
			lang.Prop("nested", lang.MustObject(
				lang.Prop("z", lang.Int(1)),
				lang.Prop("a", lang.Int(2)),
			)),
			lang.Prop("id", lang.String("site")),
		)},
		{"pages/about.md", lang.MustObject(
			lang.Prop("title", lang.String("About")),
			lang.Prop("content", lang.String("# About\n\nText.\n")),
			lang.Prop("id", lang.String("about")),
		)},
		{"pages/plain.md", lang.MustObject(
			lang.Prop("content", lang.String("just text\n")),
			lang.Prop("id", lang.String("plain")),
		)},
		{"pages/empty.md", lang.MustObject(
			lang.Prop("content", lang.String("body\n")),
			lang.Prop("id", lang.String("empty")),
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Load(context.Background(), fsys, tt.name)
			if err != nil {
				t.Fatal(err)
			}

			if doc.Path() != tt.name {
				t.Errorf("Path() = %q", doc.Path())
			}

			if got := doc.Root(); !got.Equal(tt.want) {
				t.Errorf("Root() = %v, want %v", got, tt.want)
			}
		})
	}

	doc, err := Load(context.Background(), fsys, "posts/hello.fol")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(lang.Docstring{" A post."}, doc.Doc()); diff != "" {
		t.Errorf("Doc() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.fol":     {Data: []byte(`{a: 1, a: 2}`)},
		"list.yaml":   {Data: []byte("- a\n- b\n")},
		"empty.yaml":  {Data: []byte("")},
		"broken.yaml": {Data: []byte("a: [1, 2\n")},
		"list.md":     {Data: []byte("---\n- a\n---\nbody")},
		"notes.txt":   {Data: []byte("text")},
	}

	tests := []struct {
		name string
		want error
	}{
		{"bad.fol", lang.ErrDuplicateProperty},
		{"list.yaml", ErrExpectedObject},
		{"empty.yaml", ErrExpectedObject},
		{"broken.yaml", ErrDecode},
		{"list.md", ErrExpectedObject},
		{"notes.txt", ErrUnsupportedExtension},
		{"missing.fol", ErrRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(context.Background(), fsys, tt.name); !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		front string
		body  string
	}{
		{"none", "body", "", "body"},
		{"unclosed", "---\ntitle: x\n", "", "---\ntitle: x\n"},
		{"fenced", "---\ntitle: x\n---\nbody", "title: x\n", "body"},
		{"crlf", "---\r\ntitle: x\r\n---\r\nbody", "title: x\r\n", "body"},
		{"closing at eof", "---\ntitle: x\n---", "title: x\n", ""},
		{"empty", "---\n---\nbody", "", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			front, body, err := splitFrontMatter([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}

			if string(front) != tt.front || string(body) != tt.body {
				t.Errorf("splitFrontMatter() = %q, %q", front, body)
			}
		})
	}
}

func TestExtensions(t *testing.T) {
	want := []string{".fol", ".json", ".markdown", ".md", ".yaml", ".yml"}
	if diff := cmp.Diff(want, Extensions()); diff != "" {
		t.Errorf("Extensions() mismatch (-want +got):\n%s", diff)
	}
}
