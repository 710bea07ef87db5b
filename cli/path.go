package cli

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ardnew/folio/pkg"
)

const (
	// baseConfig is the base name of the global defaults file.
	baseConfig = "config"

	// defaultsExt is the extension of the global defaults file, which is
	// written in the folio document language.
	defaultsExt = ".fol"
)

// defaultDirMode is the permission mode for created directories.
var defaultDirMode os.FileMode = 0o700

// appDir returns the pkg.Name directory below the base returned by user, or
// below fallback in the home directory, or below the working directory.
func appDir(user func() (string, error), fallback string) string {
	dir, err := user()
	if err != nil {
		if home, herr := os.UserHomeDir(); herr == nil {
			dir = filepath.Join(home, fallback)
		} else if dir, err = os.Getwd(); err != nil {
			dir = "."
		}
	}

	return filepath.Join(dir, pkg.Name)
}

var (
	configDir = sync.OnceValue(func() string { return appDir(os.UserConfigDir, ".config") })
	cacheDir  = sync.OnceValue(func() string { return appDir(os.UserCacheDir, ".cache") })
)

// configPath joins elem to the configuration directory.
func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}

// mkdirAllRequired creates the configuration and cache directories.
func mkdirAllRequired() error {
	for _, dir := range []string{configDir(), cacheDir()} {
		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return err
		}
	}

	return nil
}
