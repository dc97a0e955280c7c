package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := New().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
