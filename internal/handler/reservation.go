package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// ReservationHandler exposes the hold/confirm/release lifecycle.  Every
// route acts on behalf of the authenticated user; reservations of other
// users are reported as not found.
type ReservationHandler struct {
	Service     *service.ReservationService
	DefaultHold int // minutes used when hold_minutes is omitted
}

func NewReservationHandler(s *service.ReservationService, defaultHold int) *ReservationHandler {
	if s == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if defaultHold <= 0 {
		defaultHold = service.DefaultHoldMinutes
	}
	return &ReservationHandler{Service: s, DefaultHold: defaultHold}
}

type holdReq struct {
	ShowID      uint64 `json:"show_id"`
	SeatLabel   string `json:"seat_label"`
	HoldMinutes *int   `json:"hold_minutes"` // nil selects the default
}

// Hold handles POST /v1/reservations/hold.
func (h *ReservationHandler) Hold(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ShowID == 0 {
		return badRequest(c, "show_id is required")
	}
	minutes := h.DefaultHold
	if req.HoldMinutes != nil {
		minutes = *req.HoldMinutes
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Service.Hold(ctx, service.HoldRequest{
		UserID:      uid,
		ShowID:      req.ShowID,
		SeatLabel:   req.SeatLabel,
		HoldMinutes: minutes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	uid, id, ok := h.target(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Service.ConfirmAs(ctx, uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Release handles POST /v1/reservations/:id/release.
func (h *ReservationHandler) Release(c echo.Context) error {
	uid, id, ok := h.target(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Service.ReleaseAs(ctx, uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, id, ok := h.target(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Service.Get(ctx, uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Mine handles GET /v1/my-reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Service.ListByUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}

// target returns the caller and the :id path parameter.
func (h *ReservationHandler) target(c echo.Context) (uint64, uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := parseID(c, "id")
	return uid, id, ok
}
