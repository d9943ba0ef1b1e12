package handler // handler defines http handlers

import (
	"context"  // context bounds request-scoped work
	"errors"   // errors matches service error kinds
	"net/http" // status codes
	"strconv"  // strconv converts path params to ids
	"time"     // request timeouts

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/event-ticketing/internal/service" // error taxonomy
)

// requestTimeout bounds every handler's work against the store.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "validation"})
}

// writeError maps a service error onto an HTTP status and a stable error
// code.  Internal failures are logged and reported without detail.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	msg := err.Error()
	if errors.As(err, &se) {
		msg = se.Message
	}
	switch service.KindOf(err) {
	case service.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg, "code": "not_found"})
	case service.ErrValidation:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "validation"})
	case service.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": msg, "code": "conflict"})
	case service.ErrInvalidState:
		body := echo.Map{"error": msg, "code": "invalid_state"}
		if se != nil && se.Status != "" {
			body["status"] = se.Status
		}
		return c.JSON(http.StatusBadRequest, body)
	case service.ErrExpired:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "expired"})
	}
	c.Logger().Errorf("request failed: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}
