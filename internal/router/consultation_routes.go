package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/handler"
	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/model"
)

// PageConsultations is the page name the consultation listing is gated on.
const PageConsultations = "consultations"

// RegisterConsultations registers consultation intake. Anonymous callers of
// the intake endpoint are given a guest identity on the fly; listing needs
// read access to the consultations page.
func RegisterConsultations(e *echo.Echo, h *handler.ConsultationHandler, gate *middleware.Gate, guests middleware.GuestCreator, perms middleware.PermissionChecker, limits middleware.RateLimits) {
	e.POST("/consultations", h.Create, limits.General, gate.OptionalAuthenticated(), gate.AutoGuest(guests))
	e.GET("/consultations/mine", h.Mine,
		limits.General,
		gate.RequireAuthenticated(),
		gate.RequirePermission(perms, PageConsultations, model.CapRead),
	)
}
