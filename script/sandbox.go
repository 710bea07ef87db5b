package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/folio/lang"
	"github.com/ardnew/folio/log"
)

// Defaults for sandbox budgets.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxDepth = 256
)

// Option configures a [Sandbox].
type Option func(*options)

type options struct {
	logger   log.Logger
	config   lang.Value
	extra    []Intrinsic
	timeout  time.Duration
	maxDepth int
}

// WithLogger sets the logger used for trace output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig binds project configuration to the "config" identifier.
func WithConfig(config lang.Value) Option {
	return func(o *options) { o.config = config }
}

// WithTimeout bounds each hook invocation. Values below 1 select
// [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d < 1 {
			d = DefaultTimeout
		}

		o.timeout = d
	}
}

// WithMaxDepth bounds nested definition calls. Values below 1 select
// [DefaultMaxDepth].
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth < 1 {
			depth = DefaultMaxDepth
		}

		o.maxDepth = depth
	}
}

// WithIntrinsic registers an additional host function. Its name must not
// collide with a built-in intrinsic.
func WithIntrinsic(in Intrinsic) Option {
	return func(o *options) { o.extra = append(o.extra, in) }
}

// Sandbox executes the definitions of one view script. Invocations are
// serialized; sandboxes share no state.
type Sandbox struct {
	logger      log.Logger
	configValue lang.Value
	config      any
	native      *lang.Marshaler // read-only after New
	progs       map[string]*program
	consts      map[string]any
	intrinsics  map[string]Intrinsic
	name        string
	order       []string
	timeout     time.Duration
	maxDepth    int
	busy        chan struct{} // held while an invocation runs, abandoned or not
}

// New parses and compiles the view script src, then evaluates its constants
// in declaration order. name identifies the view in errors.
func New(ctx context.Context, name string, src []byte, opts ...Option) (*Sandbox, error) {
	o := options{timeout: DefaultTimeout, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	native := lang.NewMarshaler()

	s := &Sandbox{
		logger:      o.logger,
		configValue: o.config,
		config:      native.ToNative(o.config),
		native:      native,
		intrinsics:  Intrinsics(),
		name:        name,
		timeout:     o.timeout,
		maxDepth:    o.maxDepth,
		busy:        make(chan struct{}, 1),
	}

	for _, in := range o.extra {
		if _, dup := s.intrinsics[in.Name]; dup || in.Func == nil {
			return nil, newError(ErrCompile, name, in.Name, 0,
				ErrIntrinsicExists.With(slog.String("name", in.Name)))
		}

		s.intrinsics[in.Name] = in
	}

	defs, err := Parse(src)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.View = name
		}

		return nil, err
	}

	if s.progs, err = s.compile(defs); err != nil {
		return nil, err
	}

	s.order = make([]string, len(defs))
	for i, d := range defs {
		s.order[i] = d.Name
	}

	if err := s.evalConstants(ctx, defs); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "sandbox ready",
		slog.String("view", name),
		slog.Int("definitions", len(defs)),
		slog.Int("constants", len(s.consts)))

	return s, nil
}

func (s *Sandbox) evalConstants(ctx context.Context, defs []Definition) error {
	s.consts = make(map[string]any)

	for _, d := range defs {
		if d.Shape() != ShapeConst {
			continue
		}

		p := s.progs[d.Name]

		out, err := s.run(ctx, p, func(inv *invocation) (any, error) {
			return vm.Run(p.prog, inv.env)
		})
		if err != nil {
			return err
		}

		if _, err := s.native.FromNative(out); err != nil {
			return newError(ErrRuntime, s.name, d.Name, d.Line, err)
		}

		s.consts[d.Name] = out
	}

	return nil
}

// Name returns the view name.
func (s *Sandbox) Name() string { return s.name }

// Definitions returns the script's definitions in declaration order.
func (s *Sandbox) Definitions() []Definition {
	defs := make([]Definition, len(s.order))
	for i, name := range s.order {
		defs[i] = s.progs[name].def
		defs[i].Params = slices.Clone(defs[i].Params)
	}

	return defs
}

// Shape reports the shape of the definition hook, if defined.
func (s *Sandbox) Shape(hook string) (Shape, bool) {
	p, ok := s.progs[hook]
	if !ok {
		return 0, false
	}

	return p.def.Shape(), true
}

// Has reports whether the script defines hook.
func (s *Sandbox) Has(hook string) bool {
	_, ok := s.progs[hook]

	return ok
}

// Call invokes hook with args. Constants take no arguments and return their
// value; a variadic hook receives all args as its list parameter.
func (s *Sandbox) Call(ctx context.Context, hook string, args ...lang.Value) (lang.Value, error) {
	return s.call(ctx, hook, nil, args)
}

// CallItem invokes a one-parameter hook on item with "index" bound to its
// ordinal.
func (s *Sandbox) CallItem(ctx context.Context, hook string, index int, item lang.Value) (lang.Value, error) {
	return s.call(ctx, hook, map[string]any{indexName: index}, []lang.Value{item})
}

func (s *Sandbox) call(
	ctx context.Context,
	hook string,
	bind map[string]any,
	args []lang.Value,
) (lang.Value, error) {
	p, ok := s.progs[hook]
	if !ok {
		return lang.Value{}, newError(ErrRuntime, s.name, hook, 0,
			ErrUndefined.With(slog.String("name", hook)))
	}

	if p.def.Shape() == ShapeConst {
		if len(args) > 0 {
			return lang.Value{}, newError(ErrRuntime, s.name, hook, p.def.Line,
				ErrArity.With(slog.Int("want", 0), slog.Int("got", len(args))))
		}

		return s.native.FromNative(s.consts[hook])
	}

	start := time.Now()
	native := s.native.Clone()

	out, err := s.run(ctx, p, func(inv *invocation) (any, error) {
		return inv.call(p, natives(native, args), bind)
	})
	if err != nil {
		return lang.Value{}, err
	}

	v, err := native.FromNative(out)
	if err != nil {
		return lang.Value{}, newError(ErrRuntime, s.name, hook, p.def.Line, err)
	}

	s.logger.TraceContext(ctx, "hook invoked",
		slog.String("view", s.name),
		slog.String("hook", hook),
		slog.Int("args", len(args)),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("result", v.Kind().String()))

	return v, nil
}

type result struct {
	err error
	out any
}

// run executes fn on a fresh invocation bounded by the sandbox timeout.
// Invocations are serialized. A timed-out invocation is abandoned and stops at
// its next definition call, but it keeps the sandbox busy until it returns, so
// a later call waits for it within its own timeout.
func (s *Sandbox) run(
	ctx context.Context,
	p *program,
	fn func(*invocation) (any, error),
) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case s.busy <- struct{}{}:
	case <-ctx.Done():
		return nil, s.classify(p.def, ctx.Err())
	}

	inv := s.newInvocation(ctx)
	done := make(chan result, 1)

	go func() {
		defer func() { <-s.busy }()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		out, err := fn(inv)
		done <- result{out: out, err: err}
	}()

	var r result

	select {
	case r = <-done:
	case <-ctx.Done():
		select {
		case r = <-done:
		default:
			r.err = ctx.Err()
		}
	}

	if r.err != nil {
		return nil, s.classify(p.def, r.err)
	}

	return r.out, nil
}

func (s *Sandbox) classify(d Definition, err error) *Error {
	kind := ErrRuntime

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.Is(err, ErrMaxDepthExceeded):
		kind = ErrMaxDepthExceeded
	}

	return newError(kind, s.name, d.Name, d.Line, err)
}

// invocation is the state of one hook call: its deadline, its call depth and
// the environment with definitions bound to it.
type invocation struct {
	ctx      context.Context
	env      map[string]any
	depth    int
	maxDepth int
}

func (s *Sandbox) newInvocation(ctx context.Context) *invocation {
	inv := &invocation{ctx: ctx, maxDepth: s.maxDepth}

	env := make(map[string]any, len(s.consts)+len(s.progs)+2)
	maps.Copy(env, s.consts)
	env[configName] = s.config
	env[indexName] = nil

	for name, p := range s.progs {
		if p.def.Shape() != ShapeConst {
			env[name] = inv.function(p)
		}
	}

	inv.env = env

	return inv
}

func (inv *invocation) function(p *program) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return inv.call(p, args, nil)
	}
}

func (inv *invocation) call(p *program, args []any, bind map[string]any) (any, error) {
	if err := inv.ctx.Err(); err != nil {
		return nil, err
	}

	if inv.depth >= inv.maxDepth {
		return nil, ErrMaxDepthExceeded.With(
			slog.Int("max_depth", inv.maxDepth),
			slog.String("definition", p.def.Name))
	}

	inv.depth++
	defer func() { inv.depth-- }()

	env, err := bindParams(p.def, inv.env, args)
	if err != nil {
		return nil, err
	}

	maps.Copy(env, bind)

	return vm.Run(p.prog, env)
}

// bindParams returns a copy of env with the definition's parameters bound to
// args.
func bindParams(d Definition, env map[string]any, args []any) (map[string]any, error) {
	n := len(d.Params)

	if d.Variadic && len(args) < n-1 || !d.Variadic && len(args) != n {
		return nil, ErrArity.With(
			slog.String("definition", d.Name),
			slog.Int("want", n),
			slog.Int("got", len(args)))
	}

	env = maps.Clone(env)

	for i, param := range d.Params {
		if d.Variadic && i == n-1 {
			rest := make([]any, len(args)-i)
			copy(rest, args[i:])
			env[param] = rest

			break
		}

		env[param] = args[i]
	}

	return env, nil
}
