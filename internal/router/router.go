package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/handler"
	"github.com/iliyamo/vastu-backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", handler.Metrics)
}

// RegisterAuth registers the identity endpoints under /auth. Credential
// and guest creation endpoints use the auth rate class; the rest use the
// general class. Middleware is attached per route so that unknown paths
// under /auth still answer 404.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate *middleware.Gate, limits middleware.RateLimits) {
	g := e.Group("/auth")

	g.POST("/signup", a.Signup, limits.Auth)
	g.POST("/login", a.Login, limits.Auth)
	g.POST("/forgot-password", a.ForgotPassword, limits.Auth)
	g.POST("/reset-password", a.ResetPassword, limits.Auth)
	g.POST("/guest/create", a.CreateGuest, limits.Auth)

	// Logout answers 200 whether or not a usable token was presented.
	g.POST("/logout", a.Logout, limits.General, gate.OptionalAuthenticated())
	g.GET("/guest/check", a.CheckGuest, limits.General, gate.OptionalAuthenticated())

	authed := []echo.MiddlewareFunc{limits.General, gate.RequireAuthenticated()}
	g.GET("/me", a.Me, authed...)
	g.POST("/refresh", a.Refresh, authed...)
	g.POST("/guest/migrate", a.MigrateGuest, authed...)
}
