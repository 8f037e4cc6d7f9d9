// Package main provides the entry point for the psearch CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aman-CERP/psearch/cmd/psearch/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	if err != nil {
		cmd.PrintError(os.Stderr, err)
	}
	os.Exit(cmd.ExitCode(err))
}
