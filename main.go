// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loks666/anyrouter-autolog/cmd"
)

// main is the entry point for the anyrouter-autolog CLI.
func main() {
	// Interrupts cancel the run context so in-flight browser waits unwind
	// instead of leaving an orphaned Chrome process behind.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
