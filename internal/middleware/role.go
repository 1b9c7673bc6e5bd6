package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "insufficient permissions"})
}

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. The role is the
// snapshot carried in the token, so it must run after RequireAuthenticated.
func (g *Gate) RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ClaimsFrom(c) == nil {
				return unauthorized(c)
			}
			if !allowed[RoleFrom(c)] {
				return forbidden(c)
			}
			return next(c)
		}
	}
}
