package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lyftr/webhookd/internal/api"
	"github.com/lyftr/webhookd/internal/config"
	"github.com/lyftr/webhookd/internal/log"
	"github.com/lyftr/webhookd/internal/messages"
	"github.com/lyftr/webhookd/internal/metrics"
	"github.com/lyftr/webhookd/internal/storage"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Fail fast: without a signing secret no webhook can ever verify.
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("webhookd starting", "version", version, "listen", cfg.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.DBPath())
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath(), "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DBPath())

	repo := messages.NewRepo(db)
	reg := metrics.NewRegistry()

	server := api.New(api.Config{
		Listen:        cfg.Listen,
		WebhookSecret: cfg.WebhookSecret,
	}, repo, reg, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("webhookd stopped")
	return 0
}
