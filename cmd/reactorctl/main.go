// Command reactorctl lists the graph models a reactor stored in SQLite,
// prints them, shows execution history and serves them over HTTP.
//
//	reactorctl --dsn file:reactor.db models
//	reactorctl --dsn file:reactor.db --format yaml print checkout
//	reactorctl --config reactor.yaml serve
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petrijr/reactor/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reactorctl:", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
