// Command autoclose runs a single auto-close sweep and exits. It is meant for external
// schedulers (cron, Kubernetes CronJob) when the in-process scheduler is disabled.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	os.Exit(run(cfg, logger))
}

func run(cfg *config.Config, logger *zap.Logger) int {
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return 1
	}
	defer pg.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notification.Channel != "" {
		if redis := persistence.NewRedis(cfg.Redis, logger); redis != nil {
			defer redis.Close()
			notifier = notify.NewRedisNotifier(redis.Client, cfg.Notification.Channel)
		}
	}
	notifications := service.NewNotificationService(dispatcher, notifier, logger)
	notifications.RegisterHandlers()
	notifications.Start(1)
	defer notifications.Close()

	clk := clock.System()
	sweeper := service.NewAutoCloseSweeper(service.AutoCloseDependencies{
		Store:      repository.NewStore(pg.PoolHandle()),
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
		Grace:      cfg.AutoClose.Grace(),
		BatchSize:  cfg.AutoClose.BatchSize,
	})

	result, err := sweeper.Run(ctx, clk.Now())
	if err != nil {
		logger.Error("auto-close sweep failed", zap.Error(err))
		return 1
	}
	if result.Failed > 0 {
		return 1
	}
	return 0
}
