package build

//go:generate go tool stringer --linecomment --type Policy --output policy_string.go

import (
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/folio/view"
)

// Policy decides what a failed source document does to its view.
type Policy uint8

const (
	PolicySkip  Policy = iota // skip
	PolicyAbort               // abort
)

// DefaultPolicy is the default document failure policy.
const DefaultPolicy = PolicySkip

// Policies returns an iterator over the names of all policies.
func Policies() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range []Policy{PolicySkip, PolicyAbort} {
			if !yield(p.String()) {
				return
			}
		}
	}
}

// ParsePolicy parses a policy name case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range []Policy{PolicySkip, PolicyAbort} {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}

	return 0, ErrPolicy.With(slog.String("policy", s))
}

// Failure is an error isolated to one source document or result item.
// Source is empty for failures of collection results; Item is -1 for
// failures that precede process.
type Failure struct {
	Err    error
	View   string
	Source string
	Item   int
}

// Error implements the error interface: "view V source S item N: cause".
func (f *Failure) Error() string {
	loc := []string{"view " + f.View}

	if f.Source != "" {
		loc = append(loc, "source "+f.Source)
	}

	if f.Item >= 0 {
		loc = append(loc, "item "+strconv.Itoa(f.Item))
	}

	return strings.Join(loc, " ") + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// LogValue implements slog.LogValuer.
func (f *Failure) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("view", f.View)}

	if f.Source != "" {
		attrs = append(attrs, slog.String("source", f.Source))
	}

	if f.Item >= 0 {
		attrs = append(attrs, slog.Int("item", f.Item))
	}

	return slog.GroupValue(append(attrs, slog.Any("cause", f.Err))...)
}

// ViewReport summarizes one view of a build.
type ViewReport struct {
	Err       error // non-nil when the view was aborted
	Name      string
	Written   []string // output paths relative to the output root, in order
	Failures  []*Failure
	Documents int
	Items     int
	Mode      view.Mode
}

// Aborted reports whether the view produced no output because of a fatal
// error.
func (r *ViewReport) Aborted() bool { return r.Err != nil }

// LogValue implements slog.LogValuer.
func (r *ViewReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("view", r.Name),
		slog.String("mode", r.Mode.String()),
		slog.Int("documents", r.Documents),
		slog.Int("items", r.Items),
		slog.Int("written", len(r.Written)),
		slog.Int("failures", len(r.Failures)),
		slog.Bool("aborted", r.Aborted()),
	)
}

// Report summarizes a build, one entry per view in build order.
type Report struct {
	Views  []*ViewReport
	DryRun bool
}

// Written returns every output path of the build in write order.
func (r *Report) Written() []string {
	var out []string
	for _, v := range r.Views {
		out = append(out, v.Written...)
	}

	return out
}

// Failures returns every isolated failure of the build.
func (r *Report) Failures() []*Failure {
	var out []*Failure
	for _, v := range r.Views {
		out = append(out, v.Failures...)
	}

	return out
}

// OK reports whether the build finished without failures or aborted views.
func (r *Report) OK() bool {
	for _, v := range r.Views {
		if v.Aborted() || len(v.Failures) > 0 {
			return false
		}
	}

	return true
}
