// Command guestsweep deletes expired guest identities once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/database"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/service"
	"github.com/iliyamo/vastu-backend/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	days := flag.Int("days", cfg.GuestRetentionDays, "delete guests created more than this many days ago")
	flag.Parse()

	logger := config.NewLogger(cfg.LogFormat)
	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	sessions := service.NewSessionIssuer(issuer, cfg.AccessTTL, cfg.GuestTTL)
	roles := service.NewRoleService(repository.NewRoleRepo(db))
	guests := service.NewGuestService(repository.NewUserRepo(db), roles, sessions, cfg.BcryptCost, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := guests.CleanupExpiredGuests(ctx, *days)
	if err != nil {
		logger.Error("guest sweep", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("deleted %d guest(s) older than %d day(s)\n", n, *days)
}
