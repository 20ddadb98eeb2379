package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"minutes/internal/config"
	"minutes/internal/daemon"
	"minutes/internal/logging"
)

func main() {
	// A .env in the working directory is optional; the real environment
	// always wins.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("minutes daemon shutting down")
	return nil
}
