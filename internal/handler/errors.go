package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vastu-backend/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

var validationMessages = map[string]string{
	"required": "required",
	"email":    "must be a valid email address",
	"min":      "too short",
	"max":      "too long",
	"oneof":    "not an allowed value",
}

// bindAndValidate decodes the request body into req and checks its
// validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return &service.ValidationError{Fields: map[string]string{"body": "invalid request body"}}
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			msg, ok := validationMessages[fe.Tag()]
			if !ok {
				msg = "invalid"
			}
			fields[fe.Field()] = msg
		}
		return &service.ValidationError{Fields: fields}
	}
	return nil
}

// respondError maps service errors onto HTTP responses. Anything not in
// the error taxonomy is logged and reported as a bare 500.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": "request validation failed", "fields": ve.Fields})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, service.ErrRoleMissing):
		logger.Error("required role missing; seed the roles table",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_state", "message": err.Error()})
	}
	logger.Error("request failed",
		slog.String("method", c.Request().Method),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
}
