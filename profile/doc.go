// Package profile starts optional runtime profiling through
// [github.com/pkg/profile].
//
// Profiling is compiled in only with the "pprof" build tag:
//
//	go build -tags pprof .
//	folio build --pprof-mode cpu --pprof-dir ./profiles
//
// Without the tag, [Modes] is empty and [Start] returns a profiler whose Stop
// does nothing.
//
// Supported modes are allocs, block, clock, cpu, goroutine, heap, mem, mutex,
// thread and trace. Each writes its profile (cpu.pprof, mem.pprof, ...) to
// the configured directory when stopped.
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
