// Command scheduler performs a single reminder run, for deployments that
// trigger it from cron instead of the in-process loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/Vasu1712/coachlink-backend/internal/app"
	"github.com/Vasu1712/coachlink-backend/internal/config"
	"github.com/Vasu1712/coachlink-backend/internal/logging"
	"github.com/charmbracelet/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("Invalid logging configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", "err", err)
	}
	defer store.Close()

	lock, closeLock, err := app.OpenRunLock(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open run lock", "err", err)
	}
	defer closeLock()

	report := app.NewScheduler(store, lock, cfg, logger).Run(ctx)
	logger.Info("Run finished",
		"users", report.Users,
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"deferred", report.Deferred,
		"locked", report.Locked,
	)
}
