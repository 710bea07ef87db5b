package cmd

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type (
	stdoutKey struct{}
	stdinKey  struct{}
)

// WithStdio returns a new context.Context whose commands read from in and
// write their results to out. Nil streams fall back to os.Stdin and
// os.Stdout.
func WithStdio(ctx context.Context, in io.Reader, out io.Writer) context.Context {
	if in != nil {
		ctx = context.WithValue(ctx, stdinKey{}, in)
	}

	if out != nil {
		ctx = context.WithValue(ctx, stdoutKey{}, out)
	}

	return ctx
}

func stdoutFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(stdoutKey{}).(io.Writer); ok {
		return w
	}

	return os.Stdout
}

func stdinFrom(ctx context.Context) io.Reader {
	if r, ok := ctx.Value(stdinKey{}).(io.Reader); ok {
		return r
	}

	return os.Stdin
}
