package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/deliverus/deliverus-schema/cmd/deliverus/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.Execute(ctx)
}
