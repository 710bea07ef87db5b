package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ardnew/folio/cli/cmd"
	"github.com/ardnew/folio/pkg"
)

// CLI is the top-level command-line interface for folio.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Build   cmd.Build   `cmd:"" default:"withargs" help:"Build the site (default)."`
	Check   cmd.Check   `cmd:""                    help:"Run every view without writing and list problems."`
	Fmt     cmd.Fmt     `cmd:""                    help:"Format a document."`
	Init    cmd.Init    `cmd:""                    help:"Write the global defaults file."`
	Version cmd.Version `cmd:""                    help:"Print the version."`
}

// Run executes the folio CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	defaultsPath := configPath(baseConfig + defaultsExt)

	vars := kong.Vars{
		cmd.ConfigIdentifier: defaultsPath,
		cmd.CacheIdentifier:  cacheDir(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logger flags apply before kong parses anything, wherever they appear.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(kong.JSON, configPath(baseConfig+".json")),
		kong.Configuration(resolve(ctx), defaultsPath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)

	cli.Log.start(ctx)

	// No-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
