package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	api "tasksync-backend/cmd/api"
	"tasksync-backend/internal/app"
	"tasksync-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize:", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatal("Failed to start background jobs:", err)
	}

	handler := api.NewHandler(a)
	if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
		log.Printf("Server stopped with error: %v", err)
		return
	}
	log.Println("Server stopped")
}
