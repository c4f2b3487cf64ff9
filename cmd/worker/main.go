// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/smsleopard-agent/internal/app"
	"github.com/unclebandit/smsleopard-agent/internal/config"
)

// The worker consumes inbound_messages from RabbitMQ and publishes replies
// to outbound_sms for the SMS gateway.
func main() {
	cfg, err := config.NewLoadedConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.Level())
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.QueueBackend != config.QueueAMQP {
		logger.Warn("queue backend is not amqp, using it anyway", "queue_backend", cfg.QueueBackend)
		cfg.QueueBackend = config.QueueAMQP
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close", "error", err)
		}
	}()

	if err := a.Worker.Start(ctx, a.Queue); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
