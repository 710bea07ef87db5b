package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ardnew/folio/cli"
	"github.com/ardnew/folio/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.Run(ctx, os.Exit, os.Args[1:]...)
	if err != nil {
		log.Error("run failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
