// Package cmd implements the folio subcommands: build, check, fmt, init and
// version.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the global defaults file.
	ConfigIdentifier = "config"
)
