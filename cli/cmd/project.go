package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ardnew/folio/build"
	"github.com/ardnew/folio/config"
	"github.com/ardnew/folio/log"
	"github.com/ardnew/folio/render"
)

// Project selects the project a command works on.
type Project struct {
	Root string `default:"." help:"Project root directory." name:"project" short:"C" type:"existingdir"`
}

// builder loads the project, applies override, and returns a builder over
// its views and templates.
func (p *Project) builder(
	ctx context.Context,
	override func(*config.Project),
	opts ...build.Option,
) (*config.Project, *build.Builder, error) {
	proj, err := config.Load(ctx, p.Root)
	if err != nil {
		return nil, nil, err
	}

	if override != nil {
		override(proj)
	}

	renderer := render.New(
		render.WithLogger(log.Default()),
		render.WithConfig(proj.Config),
	)

	for _, dir := range proj.TemplatePath(os.Getenv(config.EnvTemplatePath)) {
		err := renderer.AddDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			log.WarnContext(ctx, "template directory not found", slog.String("dir", dir))

			continue
		}

		if err != nil {
			return nil, nil, err
		}
	}

	log.DebugContext(ctx, "templates registered", slog.Int("count", len(renderer.Templates())))

	views, err := build.LoadViews(ctx, proj.Root, proj.Views, proj.ScriptOptions()...)
	if err != nil {
		return nil, nil, err
	}

	b, err := build.New(views, renderer, append([]build.Option{
		build.WithLogger(log.Default()),
		build.WithSourceDir(proj.Root),
		build.WithOutput(proj.Path(proj.Output)),
		build.WithPolicy(proj.OnError),
		build.WithWorkers(proj.Workers),
	}, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	return proj, b, nil
}
