package main

import (
	"context"
	"os/signal"
	"syscall"

	workerledger "github.com/canopy-network/postertoken/app/ledger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := workerledger.Initialize(ctx)

	app.Start(ctx)
}
