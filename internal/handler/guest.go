package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/service"
)

type migrateReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
}

// CreateGuest creates a guest identity and returns its session.
func (h *AuthHandler) CreateGuest(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Guests.CreateGuestUser(ctx)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	sess, err := h.Guests.CreateGuestSession(ctx, u)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(sess))
}

// MigrateGuest turns the calling guest into a full account in place.
func (h *AuthHandler) MigrateGuest(c echo.Context) error {
	var req migrateReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	id, _ := middleware.UserIDFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	guest, err := h.Auth.Me(ctx, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	_, sess, err := h.Guests.Migrate(ctx, guest, service.MigrateInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

type guestCheckResp struct {
	Authenticated bool    `json:"authenticated"`
	IsGuest       bool    `json:"is_guest"`
	UserID        *uint64 `json:"user_id,omitempty"`
	Role          string  `json:"role,omitempty"`
}

// CheckGuest reports what kind of identity, if any, the caller holds. The
// answer comes from the stored identity, not the token snapshot.
func (h *AuthHandler) CheckGuest(c echo.Context) error {
	id, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, guestCheckResp{})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.Me(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusOK, guestCheckResp{})
		}
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, guestCheckResp{
		Authenticated: true,
		IsGuest:       h.Guests.IsGuest(u),
		UserID:        &u.ID,
		Role:          u.RoleName,
	})
}
