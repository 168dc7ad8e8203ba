// CLAUDE:SUMMARY Entry point for the baseline CLI: signal-aware context around the cobra command tree.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/baseline/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
