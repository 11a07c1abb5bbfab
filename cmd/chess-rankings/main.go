// Package main is the chess-rankings command line.
//
// Without a subcommand it prints the top classical players, the top
// player's 30-day rating trend, and writes the CSV of the top players'
// trends. Subcommands run those reports individually, run the scheduled
// worker, and inspect stored runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
