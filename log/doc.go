// Package log provides structured logging for folio based on [log/slog].
//
// A [Logger] wraps a [slog.Logger] with a Trace level below Debug and a set
// of functional options applied at construction time:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("kitchen"))
//
//	logger.Info("build started", slog.Int("views", 3))
//
// Every logging method accepts [slog.Attr] values only, which keeps call
// sites typed. Values implementing [slog.LogValuer] (all folio error types
// do) are expanded into groups.
//
// The package also maintains a default logger used by the package-level
// functions [Trace], [Debug], [Info], [Warn], and [Error]. The CLI adjusts it
// with [Config] while parsing flags so that messages emitted during startup
// already honor the requested level and format.
//
// # Pretty output
//
// With [WithPretty] enabled (the default), text output colorizes keys and
// values, and JSON output is indented over multiple lines. Disable it when
// writing to files or pipes consumed by other tools.
package log
