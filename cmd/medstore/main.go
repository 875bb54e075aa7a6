// Package main is the medstore CLI executable
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/stolasapp/medstore/internal/command"
)

const exitNoMatch = 2

func main() { os.Exit(run()) }

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := command.RootCommand().ExecuteContext(ctx)
	switch {
	case errors.Is(err, command.ErrNoMatch):
		return exitNoMatch
	case err != nil:
		return 1
	}
	return 0
}
