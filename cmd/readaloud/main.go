package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Cancelled on Ctrl+C or SIGTERM so serve can clean up session files
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
