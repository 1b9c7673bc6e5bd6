package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/service"
)

// AuthHandler bundles dependencies for auth and guest endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Guests *service.GuestService
	Logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, guests *service.GuestService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Auth: auth, Guests: guests, Logger: logger}
}

// ----- DTOs -----

type signupReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=32"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Signup: create a credentialed identity and sign it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Signup(ctx, service.SignupInput{Email: req.Email, Password: req.Password, FullName: req.FullName, Phone: req.Phone})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(sess))
}

// Login: verify credentials and issue a standard session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password, c.RealIP())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Me returns the caller's stored identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := middleware.UserIDFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.Me(ctx, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// Refresh issues a new token from the identity's current state.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, middleware.ClaimsFrom(c))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Logout always succeeds; a presented token is revoked when possible.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	h.Auth.Logout(ctx, middleware.ClaimsFrom(c))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

const forgotMessage = "if the address is registered, a reset link has been sent"

// ForgotPassword answers identically whether or not the email exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	h.Auth.ForgotPassword(ctx, req.Email)
	return c.JSON(http.StatusOK, echo.Map{"message": forgotMessage})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
