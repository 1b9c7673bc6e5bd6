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

// ConsultationHandler serves consultation intake.
type ConsultationHandler struct {
	Consultations *service.ConsultationService
	Logger        *slog.Logger
}

func NewConsultationHandler(svc *service.ConsultationService, logger *slog.Logger) *ConsultationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsultationHandler{Consultations: svc, Logger: logger}
}

type consultationReq struct {
	Name          string     `json:"name" validate:"required,max=255"`
	Email         string     `json:"email" validate:"omitempty,email,max=255"`
	Phone         string     `json:"phone" validate:"max=32"`
	Type          string     `json:"type" validate:"max=64"`
	Message       string     `json:"message" validate:"required,max=5000"`
	PreferredDate *time.Time `json:"preferred_date"`
}

// Create records a request owned by the caller, who is a guest created on
// the spot when the request arrived anonymously.
func (h *ConsultationHandler) Create(c echo.Context) error {
	var req consultationReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	var owner *uint64
	if id, ok := middleware.UserIDFrom(c); ok {
		owner = &id
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Consultations.Create(ctx, owner, service.ConsultationInput{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Type:          req.Type,
		Message:       req.Message,
		PreferredDate: req.PreferredDate,
	})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toConsultationPart(*out))
}

// Mine lists the caller's own requests.
func (h *ConsultationHandler) Mine(c echo.Context) error {
	id, _ := middleware.UserIDFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Consultations.ListMine(ctx, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	out := make([]consultationPart, 0, len(list))
	for _, item := range list {
		out = append(out, toConsultationPart(item))
	}
	return c.JSON(http.StatusOK, echo.Map{"consultations": out})
}
