package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/database"
	"github.com/iliyamo/vastu-backend/internal/jobs"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/service"
	"github.com/iliyamo/vastu-backend/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogFormat)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, 256, logger)
		go pub.Run(ctx)
		events = pub

		go func() {
			if err := queue.StartIdentityConsumer(ctx, cfg.RabbitURL, cfg.IdentityLogPath, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("identity consumer", slog.Any("error", err))
			}
		}()
	} else {
		logger.Warn("RABBITMQ_URL not set; identity audit log disabled")
	}

	// The sweep never issues sessions, but the guest service needs an
	// issuer to be constructed.
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	sessions := service.NewSessionIssuer(issuer, cfg.AccessTTL, cfg.GuestTTL)
	roles := service.NewRoleService(repository.NewRoleRepo(db))
	guests := service.NewGuestService(repository.NewUserRepo(db), roles, sessions, cfg.BcryptCost, logger, service.WithGuestEvents(events))
	cleanup := jobs.NewGuestCleanupJob(guests, cfg.GuestRetentionDays, logger)

	cleanupTask, err := jobs.NewGuestCleanupTask(cfg.GuestRetentionDays)
	if err != nil {
		logger.Error("build guest cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqRedisOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGuestCleanup, Handler: cleanup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.GuestSweepCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
