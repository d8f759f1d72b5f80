package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HarshKochar9008/WINCE/cmd/sessions/commands"
)

func main() {
	// Cancel in-flight requests and callback waits on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", commands.UserMessage(err))
		cancel()
		os.Exit(1)
	}
}
