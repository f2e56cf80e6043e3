// Package app builds the components shared by the server and the one-shot
// scheduler from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/Vasu1712/coachlink-backend/internal/config"
	"github.com/Vasu1712/coachlink-backend/internal/notify"
	"github.com/Vasu1712/coachlink-backend/internal/storage"
	"github.com/Vasu1712/coachlink-backend/internal/storage/memory"
	"github.com/Vasu1712/coachlink-backend/internal/storage/postgres"
	"github.com/Vasu1712/coachlink-backend/internal/storage/valkey"
	"github.com/charmbracelet/log"
)

// OpenStore returns the PostgreSQL store when DATABASE_URL is set and the
// in-memory store otherwise.
func OpenStore(ctx context.Context, cfg config.Config, logger *log.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		return memory.NewStore(), nil
	}
	store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return store, nil
}

// OpenRunLock returns a valkey-backed lock when VALKEY_ADDR is set, so runs
// do not overlap across replicas, and a process-local lock otherwise. The
// returned close func is never nil.
func OpenRunLock(ctx context.Context, cfg config.Config, logger *log.Logger) (notify.RunLock, func(), error) {
	if cfg.ValkeyAddr == "" {
		return &notify.LocalLock{}, func() {}, nil
	}
	lock, err := valkey.Open(ctx, cfg.ValkeyAddr, cfg.ValkeyPassword, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Scheduler run lock backed by valkey", "addr", cfg.ValkeyAddr)
	return lock, lock.Close, nil
}

// NewScheduler wires a Scheduler from cfg.
func NewScheduler(store storage.NotificationStore, lock notify.RunLock, cfg config.Config, logger *log.Logger) *notify.Scheduler {
	return notify.NewScheduler(store, notify.SchedulerOptions{
		Interval:    cfg.SchedulerInterval,
		RunTimeout:  cfg.SchedulerRunTimeout,
		UserTimeout: cfg.SchedulerUserTimeout,
		Lock:        lock,
	}, logger)
}
