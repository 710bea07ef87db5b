package script

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/folio/lang"
)

func mustSandbox(t *testing.T, src string, opts ...Option) *Sandbox {
	t.Helper()

	s, err := New(context.Background(), "test", []byte(src), opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", src, err)
	}

	return s
}

func mustDoc(t *testing.T, src string) lang.Value {
	t.Helper()

	doc, err := lang.ParseString(context.Background(), src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}

	return doc.Root()
}

func call(t *testing.T, s *Sandbox, hook string, args ...lang.Value) lang.Value {
	t.Helper()

	v, err := s.Call(context.Background(), hook, args...)
	if err != nil {
		t.Fatalf("Call(%s): %v", hook, err)
	}

	return v
}

func TestSandbox_Constants(t *testing.T) {
	s := mustSandbox(t, `
		site: "folio"
		title: site + " blog"
		count: len([1, 2, 3])
		tags: ["a", "b"]
	`)

	tests := []struct {
		hook string
		want lang.Value
	}{
		{"site", lang.String("folio")},
		{"title", lang.String("folio blog")},
		{"count", lang.Int(3)},
		{"tags", lang.Array(lang.String("a"), lang.String("b"))},
	}

	for _, tt := range tests {
		if got := call(t, s, tt.hook); !got.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.hook, got, tt.want)
		}
	}
}

func TestSandbox_ConstantForwardReference(t *testing.T) {
	_, err := New(context.Background(), "test", []byte("a: b + 1\nb: 1"))
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("error = %v, want ErrCompile", err)
	}

	var se *Error
	if !errors.As(err, &se) || se.View != "test" || se.Hook != "a" || se.Line != 1 {
		t.Errorf("error location = %+v", se)
	}
}

func TestSandbox_Functions(t *testing.T) {
	s := mustSandbox(t, `
		process post: {title: upper(post.title), position: index, twice: double(post.n)}
		double n: n * 2
		sum ...ns: reduce(ns, #acc + #, 0)
		total: sum(1, 2, 3)
	`)

	if got := call(t, s, "total"); !got.Equal(lang.Int(6)) {
		t.Errorf("total = %v, want 6", got)
	}

	post := mustDoc(t, `{title: "hello", n: 21}`)

	got, err := s.CallItem(context.Background(), "process", 4, post)
	if err != nil {
		t.Fatal(err)
	}

	want := lang.MustObject(
		lang.Prop("position", lang.Int(4)),
		lang.Prop("title", lang.String("HELLO")),
		lang.Prop("twice", lang.Int(42)),
	)

	if !got.Equal(want) {
		t.Errorf("process = %v, want %v", got, want)
	}
}

func TestSandbox_UntypedNames(t *testing.T) {
	post := mustDoc(t, `{title: "hi", n: 4, tags: ["a", "b"]}`)

	tests := []struct {
		name string
		src  string
		args []lang.Value
		want lang.Value
	}{
		{"parameter field", "process post: post.title", []lang.Value{post}, lang.String("hi")},
		{"parameter arithmetic", "process post: post.n * 2", []lang.Value{post}, lang.Int(8)},
		{"parameter builtin", "process post: len(post.tags)", []lang.Value{post}, lang.Int(2)},
		{"variadic builtin", "process ...posts: len(posts)", []lang.Value{post, post}, lang.Int(2)},
		{"variadic predicate", "process ...posts: filter(posts, #.n > 3)", []lang.Value{post}, lang.Array(post)},
		{"constant operand", "site: \"folio\"\nprocess post: site + \" \" + post.title", []lang.Value{post}, lang.String("folio hi")},
		{"config member", "process post: config.name", []lang.Value{post}, lang.String("notes")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSandbox(t, tt.src, WithConfig(mustDoc(t, `{name: "notes"}`)))

			if got := call(t, s, "process", tt.args...); !got.Equal(tt.want) {
				t.Errorf("process = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSandbox_KeepsPropertyOrder(t *testing.T) {
	s := mustSandbox(t, `
		process post: post
		first ...posts: posts[0]
		nested post: post.meta
	`)

	post := mustDoc(t, `{zeta: 1, alpha: {y: 1, b: 2}, meta: {z: true, a: false}}`)

	tests := []struct {
		hook string
		args []lang.Value
		want lang.Value
	}{
		{"process", []lang.Value{post}, post},
		{"first", []lang.Value{post, post}, post},
		{"nested", []lang.Value{post}, mustDoc(t, `{z: true, a: false}`)},
	}

	for _, tt := range tests {
		if got := call(t, s, tt.hook, tt.args...); !got.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.hook, got, tt.want)
		}
	}
}

func TestSandbox_Collection(t *testing.T) {
	s := mustSandbox(t, `
		process ...posts: map(posts, #.id)
	`)

	docs := []lang.Value{
		mustDoc(t, `{id: "a"}`),
		mustDoc(t, `{id: "b"}`),
		mustDoc(t, `{id: "c"}`),
	}

	got := call(t, s, "process", docs...)
	want := lang.Array(lang.String("a"), lang.String("b"), lang.String("c"))

	if !got.Equal(want) {
		t.Errorf("process = %v, want %v", got, want)
	}

	if got := call(t, s, "process"); !got.Equal(lang.Array()) {
		t.Errorf("process() = %v, want []", got)
	}
}

func TestSandbox_SortWithIsStable(t *testing.T) {
	s := mustSandbox(t, `
		process ...posts: map(sortWith(posts, byRank), #.id)
		byRank a b: a.rank - b.rank
	`)

	var docs []lang.Value
	for _, src := range []string{
		`{id: "a", rank: 2}`,
		`{id: "b", rank: 1}`,
		`{id: "c", rank: 2}`,
		`{id: "d", rank: 1}`,
		`{id: "e", rank: 0}`,
		`{id: "f", rank: 2}`,
	} {
		docs = append(docs, mustDoc(t, src))
	}

	got := call(t, s, "process", docs...)
	want := lang.Array(
		lang.String("e"),
		lang.String("b"), lang.String("d"),
		lang.String("a"), lang.String("c"), lang.String("f"),
	)

	if !got.Equal(want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
}

func TestSandbox_Dates(t *testing.T) {
	s := mustSandbox(t, `
		newest ...posts: map(sortWith(posts, byDateDesc), #.date.iso)
		byDateDesc a b: compareDates(b.date, a.date)
		year p: p.date.year
		parsed: date("2024-02-29")
		moment: datetime("2024-02-29T10:30:00+02:00")
	`)

	docs := []lang.Value{
		mustDoc(t, `{date: 2023-05-01}`),
		mustDoc(t, `{date: 2024-01-15}`),
		mustDoc(t, `{date: 2022-12-31}`),
	}

	got := call(t, s, "newest", docs...)
	want := lang.Array(
		lang.String("2024-01-15"),
		lang.String("2023-05-01"),
		lang.String("2022-12-31"),
	)

	if !got.Equal(want) {
		t.Errorf("newest = %v, want %v", got, want)
	}

	year, err := s.CallItem(context.Background(), "year", 0, docs[0])
	if err != nil {
		t.Fatal(err)
	}

	if !year.Equal(lang.Int(2023)) {
		t.Errorf("year = %v, want 2023", year)
	}

	if got := call(t, s, "parsed"); !got.Equal(lang.NewDate(lang.Date{Year: 2024, Month: time.February, Day: 29})) {
		t.Errorf("parsed = %v", got)
	}

	moment, ok := call(t, s, "moment").DateTime()
	if !ok {
		t.Fatal("moment is not a datetime")
	}

	if _, off := moment.Zone(); off != 2*60*60 || moment.Hour() != 10 {
		t.Errorf("moment = %v", moment)
	}
}

func TestSandbox_Config(t *testing.T) {
	config := lang.MustObject(
		lang.Prop("site-name", lang.String("Folio")),
		lang.Prop("nested", lang.MustObject(lang.Prop("base-url", lang.String("/blog")))),
	)

	s := mustSandbox(t, `
		name: config.site-name
		base: config.nested.base-url
		format-title t: t + " | " + name
		heading: format-title("Home")
	`, WithConfig(config))

	tests := []struct {
		hook string
		want string
	}{
		{"name", "Folio"},
		{"base", "/blog"},
		{"heading", "Home | Folio"},
	}

	for _, tt := range tests {
		if got := call(t, s, tt.hook); !got.Equal(lang.String(tt.want)) {
			t.Errorf("%s = %v, want %q", tt.hook, got, tt.want)
		}
	}
}

func TestSandbox_Intrinsics(t *testing.T) {
	s := mustSandbox(t, `
		html: markdown("*hi*")
		clean: sanitize("<b>ok</b><script>x</script>")
		slugged: slug("Hello World")
		padded: pad(7, "0", 3)
	`)

	if got, _ := call(t, s, "html").Text(); !strings.Contains(got, "<em>hi</em>") {
		t.Errorf("html = %q", got)
	}

	if got := call(t, s, "clean"); !got.Equal(lang.String("<b>ok</b>")) {
		t.Errorf("clean = %v", got)
	}

	if got := call(t, s, "slugged"); !got.Equal(lang.String("hello-world")) {
		t.Errorf("slugged = %v", got)
	}

	if got := call(t, s, "padded"); !got.Equal(lang.String("007")) {
		t.Errorf("padded = %v", got)
	}
}

func TestSandbox_WithIntrinsic(t *testing.T) {
	shout := Intrinsic{
		Name: "shout",
		Func: func(args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)) + "!", nil
		},
	}

	s := mustSandbox(t, `loud: shout("hey")`, WithIntrinsic(shout))

	if got := call(t, s, "loud"); !got.Equal(lang.String("HEY!")) {
		t.Errorf("loud = %v", got)
	}

	_, err := New(context.Background(), "test", []byte("a: 1"),
		WithIntrinsic(Intrinsic{Name: "slug", Func: shout.Func}))
	if !errors.Is(err, ErrIntrinsicExists) {
		t.Errorf("duplicate intrinsic error = %v", err)
	}
}

func TestSandbox_Timeout(t *testing.T) {
	slow := Intrinsic{
		Name: "slow",
		Func: func(args ...any) (any, error) {
			time.Sleep(250 * time.Millisecond)

			return args[0], nil
		},
	}

	s := mustSandbox(t, "process item: slow(item)",
		WithIntrinsic(slow), WithTimeout(20*time.Millisecond))

	_, err := s.CallItem(context.Background(), "process", 0, lang.Int(1))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}

	var se *Error
	if !errors.As(err, &se) || se.Hook != "process" {
		t.Errorf("error = %+v, want hook process", se)
	}
}

func TestSandbox_TimeoutHoldsSandbox(t *testing.T) {
	var active, peak atomic.Int32

	slow := Intrinsic{
		Name: "slow",
		Func: func(args ...any) (any, error) {
			n := active.Add(1)
			defer active.Add(-1)

			if n > peak.Load() {
				peak.Store(n)
			}

			time.Sleep(150 * time.Millisecond)

			return args[0], nil
		},
	}

	s := mustSandbox(t, `
		process item: slow(item)
		quick item: item
	`, WithIntrinsic(slow), WithTimeout(30*time.Millisecond))

	ctx := context.Background()

	if _, err := s.CallItem(ctx, "process", 0, lang.Int(1)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("first call error = %v, want ErrTimeout", err)
	}

	// The abandoned call is still sleeping.
	if _, err := s.CallItem(ctx, "process", 1, lang.Int(2)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("second call error = %v, want ErrTimeout", err)
	}

	if got := peak.Load(); got != 1 {
		t.Errorf("concurrent invocations = %d, want 1", got)
	}

	time.Sleep(250 * time.Millisecond)

	got, err := s.CallItem(ctx, "quick", 2, lang.Int(3))
	if err != nil {
		t.Fatalf("call after abandoned invocation: %v", err)
	}

	if n, _ := got.Int(); n != 3 {
		t.Errorf("quick = %v, want 3", got)
	}
}

func TestSandbox_MaxDepth(t *testing.T) {
	s := mustSandbox(t, `
		process item: loop(item)
		loop n: loop(n + 1)
	`, WithMaxDepth(16))

	_, err := s.CallItem(context.Background(), "process", 0, lang.Int(0))
	if !errors.Is(err, ErrMaxDepthExceeded) {
		t.Fatalf("error = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestSandbox_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{"syntax", "a 1", ErrSyntax},
		{"unknown name", "a: missing + 1", ErrCompile},
		{"reserved intrinsic", "markdown: 1", ErrCompile},
		{"reserved config", "config: 1", ErrCompile},
		{"wall clock", "a: now()", ErrCompile},
		{"runtime", `a: int("x")`, ErrRuntime},
		{"unsupported constant", "f x: x\na: f", ErrRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), "broken", []byte(tt.src))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}

			var se *Error
			if !errors.As(err, &se) || se.View != "broken" {
				t.Errorf("error = %+v, want view broken", se)
			}
		})
	}
}

func TestSandbox_CallErrors(t *testing.T) {
	s := mustSandbox(t, "a: 1\nf x: x\nbad x: x.missing.field")

	tests := []struct {
		name  string
		hook  string
		args  []lang.Value
		cause error
	}{
		{"undefined", "nope", nil, ErrUndefined},
		{"constant with args", "a", []lang.Value{lang.Int(1)}, ErrArity},
		{"wrong arity", "f", []lang.Value{lang.Int(1), lang.Int(2)}, ErrArity},
		{"runtime", "bad", []lang.Value{lang.Int(1)}, ErrRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Call(context.Background(), tt.hook, tt.args...)
			if !errors.Is(err, tt.cause) {
				t.Errorf("error = %v, want %v", err, tt.cause)
			}
		})
	}
}

func TestSandbox_Definitions(t *testing.T) {
	s := mustSandbox(t, "b: 1\na x: x\nc ...xs: xs")

	var got []string
	for _, d := range s.Definitions() {
		got = append(got, d.Name+":"+d.Shape().String())
	}

	want := []string{"b:const", "a:item", "c:collection"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Definitions() mismatch (-want +got):\n%s", diff)
	}

	if shape, ok := s.Shape("c"); !ok || shape != ShapeCollection {
		t.Errorf("Shape(c) = %v, %v", shape, ok)
	}

	if s.Has("z") {
		t.Error("Has(z) = true")
	}
}
