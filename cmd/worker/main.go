// Package main runs the background task worker and cron scheduler.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cafeteria-hr/service_layer/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication(ctx, runtime.Options{Worker: true})
	if err != nil {
		log.Fatalf("failed to initialise worker: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("worker error: %v", err)
		_ = app.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
