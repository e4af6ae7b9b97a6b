package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/voiceloop/internal/console"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		console.NewPrinter(os.Stderr, "").Error(err)
		cancel()
		os.Exit(1)
	}
}
