package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/service"
	"github.com/iliyamo/vastu-backend/internal/token"
)

// TokenVerifier is implemented by *token.Issuer.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// PermissionChecker is implemented by *service.RoleService.
type PermissionChecker interface {
	Check(ctx context.Context, userID uint64, page string, capability model.Capability) (bool, error)
}

// GuestCreator is implemented by *service.GuestService.
type GuestCreator interface {
	CreateGuestUser(ctx context.Context) (*model.User, error)
	CreateGuestSession(ctx context.Context, u *model.User) (service.Session, error)
}

// Gate authenticates requests from their bearer token and enforces role
// and page capability requirements.
type Gate struct {
	verifier TokenVerifier
	denylist token.Denylist
	logger   *slog.Logger
}

// NewGate builds a Gate. denylist may be nil, in which case revoked tokens
// stay valid until they expire.
func NewGate(verifier TokenVerifier, denylist token.Denylist, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{verifier: verifier, denylist: denylist, logger: logger}
}

var unauthorizedBody = echo.Map{"error": "unauthorized", "message": "authentication required"}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, unauthorizedBody)
}

// authenticate resolves the bearer token. The reason is only used for
// metrics; callers never reveal it to the client.
func (g *Gate) authenticate(c echo.Context) (*token.Claims, string) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return nil, "missing"
	}
	scheme, raw, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, "malformed"
	}
	claims, err := g.verifier.Verify(strings.TrimSpace(raw))
	if err != nil {
		return nil, "invalid"
	}
	if g.denylist != nil && g.denylist.IsRevoked(c.Request().Context(), claims.ID) {
		return nil, "revoked"
	}
	return claims, ""
}

// RequireAuthenticated rejects requests without a valid bearer token. Every
// failure produces the same 401 body.
func (g *Gate) RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, reason := g.authenticate(c)
			if claims == nil {
				authFailures.WithLabelValues(reason).Inc()
				return unauthorized(c)
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalAuthenticated attaches the identity when a valid token is
// present and otherwise lets the request through anonymously.
func (g *Gate) OptionalAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, _ := g.authenticate(c); claims != nil {
				setClaims(c, claims)
			}
			return next(c)
		}
	}
}

// AutoGuest gives anonymous callers a fresh guest identity. The guest
// token is returned in the X-Guest-Token header so the client can keep
// using it. If the guest cannot be created the request continues
// anonymously. It must run after OptionalAuthenticated.
func (g *Gate) AutoGuest(creator GuestCreator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ClaimsFrom(c) != nil {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := creator.CreateGuestUser(ctx)
			if err != nil {
				g.logger.Warn("auto guest creation failed", slog.String("error", err.Error()))
				return next(c)
			}
			sess, err := creator.CreateGuestSession(ctx, u)
			if err != nil {
				g.logger.Warn("auto guest session failed", slog.Uint64("user_id", u.ID), slog.String("error", err.Error()))
				return next(c)
			}
			claims, err := g.verifier.Verify(sess.Token)
			if err != nil {
				g.logger.Error("auto guest token rejected", slog.Uint64("user_id", u.ID))
				return next(c)
			}
			setClaims(c, claims)
			h := c.Response().Header()
			h.Set(HeaderGuestToken, sess.Token)
			h.Set(HeaderGuestUserID, strconv.FormatUint(u.ID, 10))
			guestsCreated.Inc()
			return next(c)
		}
	}
}

// Response headers set by AutoGuest.
const (
	HeaderGuestToken  = "X-Guest-Token"
	HeaderGuestUserID = "X-Guest-User-Id"
)

// RequirePermission allows the request only if the caller's current role
// grants capability on page. The role is re-read from the store rather
// than trusted from the token.
func (g *Gate) RequirePermission(checker PermissionChecker, page string, capability model.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := UserIDFrom(c)
			if !ok {
				return unauthorized(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			allowed, err := checker.Check(ctx, id, page, capability)
			if err != nil {
				g.logger.Error("permission check failed", slog.Uint64("user_id", id), slog.String("page", page), slog.String("error", err.Error()))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
			}
			if !allowed {
				return forbidden(c)
			}
			return next(c)
		}
	}
}
