package script

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/types"
	"github.com/expr-lang/expr/vm"
)

// Names bound by the sandbox in every expression.
const (
	configName = "config" // project configuration
	indexName  = "index"  // ordinal of the current item in per-item hooks
)

// functionType is the checked type of definitions that take parameters.
//
//nolint:gochecknoglobals
var functionType = types.TypeOf((func(...any) (any, error))(nil))

type program struct {
	prog *vm.Program
	def  Definition
}

// compile builds a program for every definition. A constant sees the
// constants declared before it; every other definition sees all constants.
// Definitions with parameters are visible everywhere. Parameters, constants
// and config are checked as values of unknown type; only names outside the
// environment are rejected.
func (s *Sandbox) compile(defs []Definition) (map[string]*program, error) {
	var (
		funcs  = make(types.Map)
		consts []string
	)

	for _, d := range defs {
		if err := s.checkName(d); err != nil {
			return nil, err
		}

		if d.Shape() == ShapeConst {
			consts = append(consts, d.Name)
		} else {
			funcs[d.Name] = functionType
		}
	}

	progs := make(map[string]*program, len(defs))

	var visible []string

	for _, d := range defs {
		env := maps.Clone(funcs)
		env[configName] = types.Any
		env[indexName] = types.Any

		names := consts
		if d.Shape() == ShapeConst {
			names = visible
			visible = append(visible, d.Name)
		}

		for _, name := range names {
			env[name] = types.Any
		}

		for _, param := range d.Params {
			env[param] = types.Any
		}

		prog, err := expr.Compile(d.Source, s.exprOptions(env)...)
		if err != nil {
			return nil, newError(ErrCompile, s.name, d.Name, d.Line, err)
		}

		s.logger.Trace("compiled definition",
			slog.String("view", s.name),
			slog.String("name", d.Name),
			slog.String("shape", d.Shape().String()),
			slog.Int("params", len(d.Params)))

		progs[d.Name] = &program{def: d, prog: prog}
	}

	return progs, nil
}

func (s *Sandbox) exprOptions(env types.Map) []expr.Option {
	names := make(map[string]bool, len(env)+len(s.intrinsics))
	for name := range env {
		names[name] = true
	}

	opts := []expr.Option{
		expr.Env(env),
		// now() would make output depend on the wall clock.
		expr.DisableBuiltin("now"),
	}

	for _, name := range slices.Sorted(maps.Keys(s.intrinsics)) {
		in := s.intrinsics[name]
		names[name] = true

		opts = append(opts, expr.Function(in.Name, in.Func, in.Types...))
	}

	return append(opts, expr.Patch(&hyphenPatcher{
		names:  names,
		config: s.configValue,
		logger: s.logger,
	}))
}

// checkName rejects definitions that would shadow sandbox-provided names.
func (s *Sandbox) checkName(d Definition) error {
	_, intrinsic := s.intrinsics[d.Name]
	if !intrinsic && d.Name != configName && d.Name != indexName {
		return nil
	}

	return newError(ErrCompile, s.name, d.Name, d.Line,
		ErrDuplicate.With(slog.String("reserved", d.Name)))
}
