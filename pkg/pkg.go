//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

// Version is the semantic version of the folio module embedded at build time.
// It is printed by the CLI when users invoke the version subcommand.
//
//go:embed VERSION
var Version string

const (
	// Name is the canonical command and module identifier used across the
	// project. For example, it appears in help text and default config paths.
	Name = "folio"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Static content generator"
)

// AuthorInfo represents an individual author's name and email address.
type AuthorInfo struct {
	// Name is the author's preferred name or handle.
	Name string
	// Email is the author's contact email address.
	Email string
}

// Author lists the primary author(s) of the project for display in metadata.
var Author = []AuthorInfo{
	{"ardnew", "andrew@ardnew.com"},
}

// EnvVar returns the name of the environment variable that holds the given
// setting, e.g. EnvVar("template-path") == "FOLIO_TEMPLATE_PATH".
func EnvVar(setting string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(setting))

	return strings.ToUpper(Name) + "_" + key
}
