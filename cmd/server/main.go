package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tropicaldog17/navledger/internal/app"
	"github.com/tropicaldog17/navledger/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("NAVLEDGER_CONFIG"))
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal("Failed to initialise:", err)
	}

	// Test database connection
	if err := a.DB.Health(); err != nil {
		a.Close()
		log.Fatal("Database health check failed:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.Serve(ctx)
	stop()
	a.Close()
	if err != nil {
		log.Fatal("Server stopped:", err)
	}
}
