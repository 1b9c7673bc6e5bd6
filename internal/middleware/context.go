package middleware

// context.go holds the keys the gate stores on the echo context and the
// accessors handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/token"
)

const (
	ctxClaims = "claims"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

func setClaims(c echo.Context, claims *token.Claims) {
	id, _ := claims.UserID()
	c.Set(ctxClaims, claims)
	c.Set(ctxUserID, id)
	c.Set(ctxRole, claims.Role)
}

// ClaimsFrom returns the verified claims of the request, or nil for an
// anonymous request.
func ClaimsFrom(c echo.Context) *token.Claims {
	claims, _ := c.Get(ctxClaims).(*token.Claims)
	return claims
}

// UserIDFrom returns the authenticated user id.
func UserIDFrom(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// RoleFrom returns the role snapshot carried by the token.
func RoleFrom(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}
