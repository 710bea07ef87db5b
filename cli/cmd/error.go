package cmd

import "github.com/ardnew/folio/lang"

var (
	ErrWriteConfig = lang.NewError("write configuration file")
	ErrFileExists  = lang.NewError("file exists (use --force to overwrite)")
	ErrWriteStdin  = lang.NewError("cannot rewrite standard input in place")
	ErrFormat      = lang.NewError("format document")
	ErrBuildFailed = lang.NewError("build finished with failures")
	ErrCheckFailed = lang.NewError("check found problems")
)
