package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/service"
)

// RoleHandler exposes role and page grant administration.
type RoleHandler struct {
	Roles  *service.RoleService
	Logger *slog.Logger
}

func NewRoleHandler(roles *service.RoleService, logger *slog.Logger) *RoleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleHandler{Roles: roles, Logger: logger}
}

type createRoleReq struct {
	Name string `json:"name" validate:"required,max=64"`
}

type grantReq struct {
	RoleID    uint64 `json:"role_id" validate:"required"`
	PageName  string `json:"page_name" validate:"required,max=128"`
	CanAccess bool   `json:"can_access"`
	CanRead   bool   `json:"can_read"`
	CanWrite  bool   `json:"can_write"`
	CanDelete bool   `json:"can_delete"`
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return id, nil
}

func (h *RoleHandler) CreateRole(c echo.Context) error {
	var req createRoleReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Roles.CreateRole(ctx, req.Name)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toRolePart(*r))
}

func (h *RoleHandler) ListRoles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, err := h.Roles.ListRoles(ctx)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	out := make([]rolePart, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRolePart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// Grant writes the capability set of one (role, page) pair.
func (h *RoleHandler) Grant(c echo.Context) error {
	var req grantReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Roles.Grant(ctx, req.RoleID, req.PageName, model.Grant{
		CanAccess: req.CanAccess,
		CanRead:   req.CanRead,
		CanWrite:  req.CanWrite,
		CanDelete: req.CanDelete,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toGrantPart(*p))
}

func (h *RoleHandler) ListGrants(c echo.Context) error {
	roleID, err := parseID(c, "role_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	grants, err := h.Roles.ListGrants(ctx, roleID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role_id": roleID, "pages": toGrantParts(grants)})
}

func (h *RoleHandler) UserPages(c echo.Context) error {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pages, err := h.Roles.AccessiblePages(ctx, userID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "pages": toGrantParts(pages)})
}

// CheckPermission answers whether a user holds a capability on a page.
// Unknown capabilities are simply not held.
func (h *RoleHandler) CheckPermission(c echo.Context) error {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Roles.Check(ctx, userID, c.Param("page"), model.Capability(c.Param("permission")))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"has_permission": ok})
}
