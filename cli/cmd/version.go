package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardnew/folio/pkg"
)

// Version prints the program version.
type Version struct{}

// Run executes the version command.
func (Version) Run(ctx context.Context) error {
	_, err := fmt.Fprintln(stdoutFrom(ctx), pkg.Name, strings.TrimSpace(pkg.Version))

	return err
}
