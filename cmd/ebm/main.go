// Package main provides the entry point for the ebm CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/ebm/cmd/ebm/commands"
	"github.com/Sumatoshi-tech/ebm/pkg/version"
)

// exitCodeValidationFailure is the exit code for datasets that fail the schema.
const exitCodeValidationFailure = 2

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		if errors.Is(err, commands.ErrValidationFailed) {
			os.Exit(exitCodeValidationFailure)
		}

		os.Exit(1)
	}
}
