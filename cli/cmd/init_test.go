package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/ardnew/folio/lang"
)

type initCLI struct {
	LogLevel string `default:"info"`
	Quiet    bool

	Build struct {
		Project

		Workers int           `default:"-1"`
		Timeout time.Duration `default:"0"`
	} `cmd:"" default:"withargs"`

	Init Init `cmd:""`
}

func initContext(t *testing.T, confPath string, args ...string) context.Context {
	t.Helper()

	var cli initCLI

	parser, err := kong.New(&cli, kong.Vars{ConfigIdentifier: confPath})
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}

	return WithContext(context.Background(), ktx)
}

func TestInit_Run(t *testing.T) {
	tests := []struct {
		name    string
		force   bool
		existed bool
		wantErr error
	}{
		{"create", false, false, nil},
		{"overwrite with force", true, true, nil},
		{"refuse without force", false, true, ErrFileExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confPath := filepath.Join(t.TempDir(), "folio", "config.fol")

			if tt.existed {
				if err := os.MkdirAll(filepath.Dir(confPath), 0o700); err != nil {
					t.Fatal(err)
				}

				if err := os.WriteFile(confPath, []byte("existing"), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			ctx := initContext(t, confPath, "init", "--log-level=debug", "--quiet")

			err := (&Init{Force: tt.force}).Run(ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatal(err)
			}

			doc, err := lang.ParseFile(context.Background(), confPath)
			if err != nil {
				t.Fatalf("defaults file does not parse: %v", err)
			}

			root := doc.Root()

			if v, _ := root.Get("log-level"); !v.Equal(lang.String("debug")) {
				t.Errorf("log-level = %v", v)
			}

			if v, _ := root.Get("quiet"); !v.Equal(lang.Bool(true)) {
				t.Errorf("quiet = %v", v)
			}

			if v, _ := root.Get("workers"); !v.Equal(lang.Int(-1)) {
				t.Errorf("workers = %v", v)
			}

			for _, key := range []string{"help", "project", "timeout"} {
				if _, ok := root.Get(key); ok {
					t.Errorf("unexpected key %q", key)
				}
			}
		})
	}
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want lang.Value
		ok   bool
	}{
		{"nil", nil, lang.Value{}, false},
		{"bool", false, lang.Bool(false), true},
		{"string", "x", lang.String("x"), true},
		{"empty string", "", lang.String(""), false},
		{"int", 3, lang.Int(3), true},
		{"duration", 2 * time.Second, lang.String("2s"), true},
		{"zero duration", time.Duration(0), lang.String("0s"), false},
		{"strings", []string{"a"}, lang.Array(lang.String("a")), true},
		{"no strings", []string{}, lang.Array(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := flagValue(tt.in)
			if ok != tt.ok || !got.Equal(tt.want) {
				t.Errorf("flagValue(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
