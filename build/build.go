// Package build runs views over source documents and writes what their
// templates render.
//
// Views run one after another in the order given. For each view the builder
// selects and parses documents, runs process, resolves each result's
// template and output path, renders, rejects paths already produced earlier
// in the build, and writes. Failures in item mode stay with the document or
// item that caused them; failures in collection mode abort the view.
package build

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
	"github.com/ardnew/folio/render"
	"github.com/ardnew/folio/script"
	"github.com/ardnew/folio/source"
	"github.com/ardnew/folio/view"
)

// Errors reported by builds.
var (
	ErrNoViews     = lang.NewError("no views found")
	ErrViewExists  = lang.NewError("view already exists")
	ErrViewAborted = lang.NewError("view aborted")
	ErrOutputPath  = lang.NewError("invalid output path")
	ErrCollision   = lang.NewError("output path collision")
	ErrWrite       = lang.NewError("failed to write output")
	ErrPolicy      = lang.NewError("unknown error policy")
)

// Option configures a [Builder].
type Option func(*Builder)

// WithLogger sets the logger for build progress.
func WithLogger(logger log.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithSourceDir reads source documents from dir.
func WithSourceDir(dir string) Option {
	return func(b *Builder) { b.fsys = os.DirFS(dir) }
}

// WithSourceFS reads source documents from fsys.
func WithSourceFS(fsys fs.FS) Option {
	return func(b *Builder) { b.fsys = fsys }
}

// WithOutput sets the directory output paths are relative to.
func WithOutput(dir string) Option {
	return func(b *Builder) { b.output = dir }
}

// WithPolicy sets what a failed source document does to its view.
func WithPolicy(p Policy) Option {
	return func(b *Builder) { b.policy = p }
}

// WithWorkers bounds concurrent parses, renders and writes. Values below 1
// select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}

		b.workers = n
	}
}

// WithDryRun runs everything except writing files.
func WithDryRun(enable bool) Option {
	return func(b *Builder) { b.dryRun = enable }
}

// WithParseOptions passes options to the document parser.
func WithParseOptions(opts ...lang.Option) Option {
	return func(b *Builder) { b.parseOpts = append(b.parseOpts, opts...) }
}

// Builder owns an ordered list of views and the renderer they share.
type Builder struct {
	logger    log.Logger
	fsys      fs.FS
	renderer  *render.Renderer
	output    string
	views     []*view.View
	parseOpts []lang.Option
	workers   int
	policy    Policy
	dryRun    bool
}

// New returns a Builder running views in order. View names must be unique
// and there must be at least one view.
func New(views []*view.View, renderer *render.Renderer, opts ...Option) (*Builder, error) {
	if len(views) == 0 {
		return nil, ErrNoViews
	}

	seen := make(map[string]struct{}, len(views))
	for _, v := range views {
		if _, dup := seen[v.Name()]; dup {
			return nil, ErrViewExists.With(slog.String("view", v.Name()))
		}

		seen[v.Name()] = struct{}{}
	}

	b := &Builder{
		logger:   log.Default(),
		fsys:     os.DirFS("."),
		renderer: renderer,
		output:   ".",
		views:    slices.Clone(views),
		workers:  runtime.GOMAXPROCS(0),
		policy:   DefaultPolicy,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// LoadViews loads the view scripts below root matching patterns. Views keep
// pattern order, then path order within a pattern. A file matched by more
// than one pattern loads once.
func LoadViews(ctx context.Context, root string, patterns []string, opts ...script.Option) ([]*view.View, error) {
	fsys := os.DirFS(root)

	var (
		views  []*view.View
		loaded = make(map[string]bool)
		names  = make(map[string]string)
	)

	for _, pattern := range patterns {
		matches, err := source.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}

		for _, name := range matches {
			if loaded[name] {
				continue
			}

			loaded[name] = true

			if prev, dup := names[view.Name(name)]; dup {
				return nil, ErrViewExists.With(
					slog.String("view", view.Name(name)),
					slog.String("path", name),
					slog.String("existing", prev))
			}

			names[view.Name(name)] = name

			v, err := view.Load(ctx, filepath.Join(root, filepath.FromSlash(name)), opts...)
			if err != nil {
				return nil, err
			}

			views = append(views, v)
		}
	}

	if len(views) == 0 {
		return nil, ErrNoViews.With(slog.Any("patterns", patterns))
	}

	return views, nil
}

// Views returns the views in build order.
func (b *Builder) Views() []*view.View { return slices.Clone(b.views) }

// Build runs every view in order. The report lists what was written and
// every isolated failure; the error joins the errors of aborted views.
// A canceled context stops the build before the next stage.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: b.dryRun}
	owned := newClaims()

	var errs []error

	for _, v := range b.views {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		vr := b.run(ctx, v, owned)
		report.Views = append(report.Views, vr)

		if vr.Err != nil {
			errs = append(errs, vr.Err)
			b.logger.ErrorContext(ctx, "view aborted", slog.Any("view", vr), slog.Any("error", vr.Err))

			continue
		}

		b.logger.InfoContext(ctx, "view built", slog.Any("view", vr))
	}

	return report, errors.Join(errs...)
}

// job is one result item on its way to an output file.
type job struct {
	item lang.Value
	out  OutputItem
}

func (b *Builder) run(ctx context.Context, v *view.View, owned *claims) *ViewReport {
	vr := &ViewReport{Name: v.Name(), Mode: v.Mode()}

	fail := func(src string, item int, err error) {
		f := &Failure{View: v.Name(), Source: src, Item: item, Err: err}
		vr.Failures = append(vr.Failures, f)
		b.logger.WarnContext(ctx, "item failed", slog.Any("failure", f))
	}

	// abort ends the view. A *Failure in err names the source and item.
	abort := func(err error) *ViewReport {
		src, item := "", -1

		var f *Failure
		if errors.As(err, &f) {
			src, item, err = f.Source, f.Item, f.Err
		}

		vr.Err = &Failure{View: v.Name(), Source: src, Item: item, Err: ErrViewAborted.Wrap(err)}

		return vr
	}

	docs, err := b.load(ctx, v, fail)
	if err != nil {
		return abort(err)
	}

	vr.Documents = len(docs)

	b.logger.DebugContext(ctx, "documents loaded",
		slog.String("view", v.Name()),
		slog.Int("documents", len(docs)))

	var jobs []job

	switch v.Mode() {
	case view.ModeItem:
		jobs, err = b.processItems(ctx, v, docs, fail)

	case view.ModeCollection:
		jobs, err = b.processCollection(ctx, v, docs, fail)
	}

	if err != nil {
		return abort(err)
	}

	vr.Items = len(jobs)

	outs, err := b.render(ctx, v, jobs, fail)
	if err != nil {
		return abort(err)
	}

	kept := outs[:0]
	for _, out := range outs {
		if err := owned.take(v.Name(), out); err != nil {
			fail(out.Source, out.Item, err)

			continue
		}

		kept = append(kept, out)
	}

	if !b.dryRun {
		if err := writeAll(ctx, b.output, kept, b.workers); err != nil {
			return abort(err)
		}
	}

	for _, out := range kept {
		vr.Written = append(vr.Written, out.Path)
	}

	return vr
}

// load parses the documents v selects, in path order. Failed documents are
// reported and dropped, or abort the view under [PolicyAbort].
func (b *Builder) load(ctx context.Context, v *view.View, fail func(string, int, error)) ([]*lang.Document, error) {
	names, err := source.Glob(b.fsys, v.Select()...)
	if err != nil {
		return nil, err
	}

	docs := make([]*lang.Document, len(names))
	errs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			docs[i], errs[i] = source.Load(gctx, b.fsys, name, b.parseOpts...)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*lang.Document, 0, len(docs))

	for i, name := range names {
		if errs[i] == nil {
			out = append(out, docs[i])

			continue
		}

		if b.policy == PolicyAbort {
			return nil, &Failure{View: v.Name(), Source: name, Item: -1, Err: errs[i]}
		}

		fail(name, -1, errs[i])
	}

	return out, nil
}

// processItems runs process once per document. A failing document or
// result item is reported and the rest continue.
func (b *Builder) processItems(
	ctx context.Context,
	v *view.View,
	docs []*lang.Document,
	fail func(string, int, error),
) ([]job, error) {
	var (
		jobs []job
		next int
	)

	for i, doc := range docs {
		items, err := v.ProcessItem(ctx, i, doc.Root())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			fail(doc.Path(), -1, err)

			continue
		}

		for _, item := range items {
			j, err := b.resolve(ctx, v, next, item)
			j.out.Source = doc.Path()

			if err != nil {
				fail(doc.Path(), next, err)
			} else {
				jobs = append(jobs, j)
			}

			next++
		}
	}

	return jobs, nil
}

// processCollection runs process once over every document. Any failure but
// an invalid output path aborts the view.
func (b *Builder) processCollection(
	ctx context.Context,
	v *view.View,
	docs []*lang.Document,
	fail func(string, int, error),
) ([]job, error) {
	roots := make([]lang.Value, len(docs))
	for i, doc := range docs {
		roots[i] = doc.Root()
	}

	items, err := v.ProcessAll(ctx, roots)
	if err != nil {
		return nil, err
	}

	jobs := make([]job, 0, len(items))

	for i, item := range items {
		j, err := b.resolve(ctx, v, i, item)
		if err != nil {
			if !errors.Is(err, ErrOutputPath) {
				return nil, &Failure{View: v.Name(), Item: i, Err: err}
			}

			fail("", i, err)

			continue
		}

		jobs = append(jobs, j)
	}

	return jobs, nil
}

func (b *Builder) resolve(ctx context.Context, v *view.View, index int, item lang.Value) (job, error) {
	j := job{item: item, out: OutputItem{Item: index}}

	tpl, err := v.Template(ctx, index, item)
	if err != nil {
		return j, err
	}

	pattern, err := v.OutputPattern(ctx, index, item)
	if err != nil {
		return j, err
	}

	p, err := ResolvePath(pattern, item)
	if err != nil {
		return j, err
	}

	j.out.Template, j.out.Path = tpl, p

	return j, nil
}

// render renders jobs concurrently and returns their outputs in job order.
// In item mode failed items are reported and dropped; in collection mode
// the first failure in job order is returned.
func (b *Builder) render(
	ctx context.Context,
	v *view.View,
	jobs []job,
	fail func(string, int, error),
) ([]OutputItem, error) {
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			jobs[i].out.Data, errs[i] = b.renderer.Render(gctx, jobs[i].out.Template, jobs[i].item)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	outs := make([]OutputItem, 0, len(jobs))

	for i, j := range jobs {
		if errs[i] == nil {
			outs = append(outs, j.out)

			continue
		}

		if v.Mode() == view.ModeCollection {
			return nil, &Failure{View: v.Name(), Source: j.out.Source, Item: j.out.Item, Err: errs[i]}
		}

		fail(j.out.Source, j.out.Item, errs[i])
	}

	return outs, nil
}
