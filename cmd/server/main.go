// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/smsleopard-agent/internal/app"
	"github.com/unclebandit/smsleopard-agent/internal/config"
)

func main() {
	cfg, err := config.NewLoadedConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.Level())
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close", "error", err)
		}
	}()

	// Without a broker the worker and the SMS sender run in this process.
	if cfg.QueueBackend == config.QueueMemory {
		if err := a.StartInProcess(ctx); err != nil {
			logger.Error("failed to start in-process worker", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // long for throttled agent runs
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server running", "addr", cfg.HTTPAddr, "queue", cfg.QueueBackend, "provider", cfg.AgentProvider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}
