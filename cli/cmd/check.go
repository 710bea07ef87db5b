package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ardnew/folio/build"
)

// Check loads the project, its templates and view scripts, and runs every
// view without writing. Each problem found is listed.
type Check struct {
	Project
}

// Run executes the check command.
func (c *Check) Run(ctx context.Context) error {
	_, builder, err := c.builder(ctx, nil, build.WithDryRun(true))
	if err != nil {
		return err
	}

	report, err := builder.Build(ctx)
	if report == nil {
		return err
	}

	out := stdoutFrom(ctx)

	problems := 0

	for _, vr := range report.Views {
		if vr.Err != nil {
			problems++

			fmt.Fprintf(out, "%v\n", vr.Err)
		}

		for _, f := range vr.Failures {
			problems++

			fmt.Fprintf(out, "%v\n", f)
		}
	}

	if problems > 0 {
		return ErrCheckFailed.With(slog.Int("problems", problems))
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ok: %d views, %d outputs\n", len(report.Views), len(report.Written()))

	return nil
}
