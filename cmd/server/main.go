// Package main runs the benefits cafeteria API server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cafeteria-hr/service_layer/internal/app/runtime"
)

func main() {
	embedWorker := flag.Bool("worker", false, "also consume the task queue in this process")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication(ctx, runtime.Options{
		HTTP:   true,
		Worker: *embedWorker,
	})
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
		_ = app.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
