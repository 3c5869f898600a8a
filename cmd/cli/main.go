package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/finance-reconciler/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand(commands.OpenServices).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
