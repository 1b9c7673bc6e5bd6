// Command seedadmin creates the schema, the built-in roles and an admin
// account. Running it again for an existing email promotes that account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/database"
	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/utils"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password (required, at least 8 characters)")
	name := flag.String("name", "Administrator", "admin full name")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		flag.Usage()
		os.Exit(2)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.Seed(ctx, db); err != nil {
		logger.Error("seed roles", slog.Any("error", err))
		os.Exit(1)
	}

	role, err := repository.NewRoleRepo(db).GetRoleByName(ctx, model.RoleAdmin)
	if err != nil {
		logger.Error("load admin role", slog.Any("error", err))
		os.Exit(1)
	}
	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		logger.Error("hash password", slog.Any("error", err))
		os.Exit(1)
	}

	users := repository.NewUserRepo(db)
	u, err := users.FindByEmail(ctx, *email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u = &model.User{
			Email:        *email,
			FullName:     *name,
			PasswordHash: &hash,
			RoleID:       role.ID,
			IsActive:     true,
		}
		err = users.Create(ctx, u)
	case err == nil:
		u.PasswordHash = &hash
		u.ExternalAuth = nil
		u.RoleID = role.ID
		u.IsActive = true
		err = users.Save(ctx, u)
	}
	if err != nil {
		logger.Error("write admin", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("admin %s ready (id=%d)\n", u.Email, u.ID)
}
