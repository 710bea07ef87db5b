// Package markup holds the text helpers shared by view-script intrinsics and
// template filters.
package markup

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Markdown converts CommonMark-style markdown to HTML. Headings get
// generated ids.
func Markdown(src string) string {
	// Parsers keep state between calls; one per conversion.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})

	return string(markdown.ToHTML([]byte(src), p, r))
}

// Sanitize strips HTML down to the elements and attributes that are safe in
// user-generated content.
func Sanitize(src string) string {
	return sanitizer().Sanitize(src)
}

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	})

	return policy
}

// Slug returns a URL-safe form of s: transliterated to ASCII, lowercased,
// with runs of other characters collapsed to '-'.
func Slug(s string) string { return slug.Make(s) }

// Pad left-pads s with repetitions of fill until it is at least width runes
// long. The last repetition is cut short if needed.
func Pad(s, fill string, width int) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 || fill == "" {
		return s
	}

	rep := []rune(strings.Repeat(fill, n/utf8.RuneCountInString(fill)+1))

	return string(rep[:n]) + s
}
