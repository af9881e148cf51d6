package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivanldv/sportcal/internal/app"
	"github.com/ivanldv/sportcal/internal/config"
	"github.com/ivanldv/sportcal/internal/observability"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}

	syncer, err := app.NewSyncer(cfg, logger)
	if err != nil {
		logger.Error("build syncer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLoop(ctx, syncer, cfg.RunInterval, logger)

	if err := syncer.Close(); err != nil {
		logger.Error("close syncer", "error", err)
	}
	if err := stopProfiler(); err != nil {
		logger.Error("stop profiler", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("shutdown tracing", "error", err)
	}

	logger.Info("syncer stopped")
}

// runLoop runs one consolidation cycle immediately, then on every tick
// until the context is cancelled. A failed cycle is logged and the next
// tick retries from the last committed snapshot.
func runLoop(ctx context.Context, syncer *app.Syncer, interval time.Duration, logger *logging.Logger) {
	runOnce(ctx, syncer, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, syncer, logger)
		}
	}
}

func runOnce(ctx context.Context, syncer *app.Syncer, logger *logging.Logger) {
	report, err := syncer.Pipeline.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.ErrorContext(ctx, "consolidation cycle failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "consolidation cycle finished",
		"events", report.Events,
		"cancelled", report.Cancelled,
		"extended", report.Extended,
		"scrape_complete", report.ScrapeComplete,
		"duration", report.Duration.String(),
	)
}
