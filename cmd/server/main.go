package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/database"
	"github.com/iliyamo/vastu-backend/internal/handler"
	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/router"
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
	slog.SetDefault(logger)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.Error("ensure schema", slog.Any("error", err))
			os.Exit(1)
		}
		if err := database.Seed(ctx, db); err != nil {
			logger.Error("seed roles", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Redis backs the token denylist and shared rate-limit counters. Both
	// degrade to process-local behaviour when it is unreachable.
	rdb := config.NewRedisClient(cfg)
	var denylist token.Denylist
	if rdb != nil {
		defer rdb.Close()
		denylist = token.NewRedisDenylist(rdb, logger)
	} else {
		logger.Warn("redis unavailable; logout revocation disabled", slog.String("addr", cfg.RedisAddr))
	}

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, 1024, logger)
		go pub.Run(ctx)
		events = pub
	}

	users := repository.NewUserRepo(db)
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	sessions := service.NewSessionIssuer(issuer, cfg.AccessTTL, cfg.GuestTTL)
	roles := service.NewRoleService(repository.NewRoleRepo(db))
	guests := service.NewGuestService(users, roles, sessions, cfg.BcryptCost, logger, service.WithGuestEvents(events))
	auth := service.NewAuthService(service.AuthDeps{
		Users:      users,
		Roles:      roles,
		Sessions:   sessions,
		Issuer:     issuer,
		Denylist:   denylist,
		Events:     events,
		Logger:     logger,
		BcryptCost: cfg.BcryptCost,
		ResetTTL:   cfg.ResetTTL,
	})
	consultations := service.NewConsultationService(repository.NewConsultationRepo(db))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics())

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("load rate limit config", slog.Any("error", err))
		os.Exit(1)
	}
	gate := middleware.NewGate(issuer, denylist, logger)
	limits := middleware.NewRateLimits(rlCfg, rdb, logger)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, guests, logger), gate, limits)
	router.RegisterAdmin(e, handler.NewRoleHandler(roles, logger), gate, limits)
	router.RegisterConsultations(e, handler.NewConsultationHandler(consultations, logger), gate, guests, roles, limits)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
