package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/handler"
	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/model"
)

// RegisterAdmin registers role and page grant administration. Every route
// requires a valid token carrying the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.RoleHandler, gate *middleware.Gate, limits middleware.RateLimits) {
	admin := []echo.MiddlewareFunc{
		limits.Admin,
		gate.RequireAuthenticated(),
		gate.RequireRole(model.RoleAdmin),
	}
	e.POST("/roles", h.CreateRole, admin...)
	e.GET("/roles", h.ListRoles, admin...)
	e.POST("/page-access", h.Grant, admin...)
	e.GET("/page-access/:role_id", h.ListGrants, admin...)
	e.GET("/user-page-access/:user_id", h.UserPages, admin...)
	e.GET("/check-permission/:user_id/:page/:permission", h.CheckPermission, admin...)
}
