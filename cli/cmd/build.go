package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ardnew/folio/build"
	"github.com/ardnew/folio/config"
	"github.com/ardnew/folio/log"
)

// Build runs every view of a project and writes the rendered output.
type Build struct {
	Project

	DryRun  bool          `help:"Render everything but write nothing; list the paths that would be written." name:"dry-run" short:"n"`
	OnError string        `default:""  enum:",skip,abort" help:"What a failed source document does to its view (default from project)." name:"on-error"`
	Timeout time.Duration `default:"0"                    help:"Time budget per script invocation (default from project)."`
	Workers int           `default:"-1"                   help:"Concurrent parses, renders and writes; 0 uses GOMAXPROCS (default from project)."`
	Output  string        `default:""                     help:"Output directory (default from project)." type:"path"`
}

// Run executes the build command.
func (b *Build) Run(ctx context.Context) error {
	proj, builder, err := b.builder(ctx, b.override, build.WithDryRun(b.DryRun))
	if err != nil {
		return err
	}

	log.DebugContext(ctx, "building", slog.Any("project", proj))

	report, err := builder.Build(ctx)
	if report != nil {
		b.summarize(ctx, report)
	}

	if err != nil {
		return err
	}

	if n := len(report.Failures()); n > 0 {
		return ErrBuildFailed.With(slog.Int("failures", n))
	}

	return nil
}

func (b *Build) override(p *config.Project) {
	if b.OnError != "" {
		// The flag is an enum, so the policy is known.
		p.OnError, _ = build.ParsePolicy(b.OnError)
	}

	if b.Timeout > 0 {
		p.Timeout = b.Timeout
	}

	if b.Workers >= 0 {
		p.Workers = b.Workers
	}

	if b.Output != "" {
		p.Output = b.Output
	}
}

func (b *Build) summarize(ctx context.Context, report *build.Report) {
	out := stdoutFrom(ctx)

	for _, vr := range report.Views {
		status := fmt.Sprintf("%d written, %d failed", len(vr.Written), len(vr.Failures))
		if vr.Aborted() {
			status = "aborted"
		}

		fmt.Fprintf(out, "%s: %s\n", vr.Name, status)

		if report.DryRun {
			for _, path := range vr.Written {
				fmt.Fprintf(out, "  %s\n", path)
			}
		}
	}
}
