package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
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
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	if err := service.ValidateStatusCatalog(ctx, store); err != nil {
		logger.Fatal("status catalog incomplete", zap.Error(err))
	}

	clk := clock.System()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if redis != nil && cfg.Notification.Channel != "" {
		notifier = notify.NewRedisNotifier(redis.Client, cfg.Notification.Channel)
	}
	stopNotifications := worker.StartNotificationWorker(service.NewNotificationService(dispatcher, notifier, logger), logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, store.Users())
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	var scheduler *worker.AutoCloseScheduler
	if cfg.AutoClose.Enabled {
		sweeper := service.NewAutoCloseSweeper(service.AutoCloseDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Clock:      clk,
			Logger:     logger,
			Grace:      cfg.AutoClose.Grace(),
			BatchSize:  cfg.AutoClose.BatchSize,
		})
		scheduler, err = worker.NewAutoCloseScheduler(sweeper, cfg.AutoClose.Schedule, clk, logger, metrics)
		if err != nil {
			logger.Fatal("invalid auto-close schedule", zap.Error(err))
		}
		if err := scheduler.Start(); err != nil {
			logger.Fatal("failed to start auto-close scheduler", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Duration(cfg.App.RequestTimeoutSeconds)*time.Second)

	deps := map[string]handlers.Pinger{"postgres": pg}
	if redis != nil {
		deps["redis"] = redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware.Handle,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	_ = app.ShutdownWithContext(shutdownCtx)
	stopNotifications()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
