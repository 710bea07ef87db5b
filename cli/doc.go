// Package cli contains the command line interface for folio.
//
// # Usage
//
//	folio [flags] [build] [--project DIR] [--dry-run] [--on-error skip|abort]
//	folio check [--project DIR]
//	folio fmt [native|json|yaml] [--write] FILE
//	folio init [--force]
//	folio version
//
// build is the default command.
//
// # Defaults File
//
// Flag defaults are read from config.fol in the user configuration directory
// (for example ~/.config/folio/config.fol). The file is a folio document
// holding an object keyed by flag name; "folio init" writes one from the
// current flag values. Command-line flags take precedence.
//
// # Logging Options
//
//   - --log-level: minimum level (trace, debug, info, warn, error)
//   - --log-format: output format (text, json)
//   - --log-time-layout: timestamp format
//   - --log-caller: include caller information
//   - --log-pretty: colorize text output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof .
//
//   - --pprof-mode: profiling mode (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: profile output directory (default ~/.cache/folio/pprof)
package cli
