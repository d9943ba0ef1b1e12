package handler

import (
	"net/http" // status codes
	"strconv"  // query paging
	"time"     // starts_at parsing

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// ShowHandler serves show and seat endpoints on top of the seat registry.
type ShowHandler struct {
	Registry *service.SeatRegistry
}

func NewShowHandler(r *service.SeatRegistry) *ShowHandler {
	if r == nil {
		panic("nil registry passed to NewShowHandler")
	}
	return &ShowHandler{Registry: r}
}

type createShowReq struct {
	Title    string `json:"title"`
	Venue    string `json:"venue"`
	StartsAt string `json:"starts_at"` // RFC 3339
}

type createSeatsReq struct {
	Labels []string `json:"labels"`
}

// CreateShow handles POST /v1/shows.
func (h *ShowHandler) CreateShow(c echo.Context) error {
	var req createShowReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return badRequest(c, "starts_at must be an RFC 3339 timestamp")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	show, err := h.Registry.CreateShow(ctx, service.NewShow{Title: req.Title, Venue: req.Venue, StartsAt: startsAt})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, show)
}

// GetShow handles GET /v1/shows/:id.
func (h *ShowHandler) GetShow(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	show, err := h.Registry.GetShow(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// ListShows handles GET /v1/shows?title=&limit=&offset=.
func (h *ShowHandler) ListShows(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := requestCtx(c)
	defer cancel()

	shows, err := h.Registry.ListShows(ctx, c.QueryParam("title"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": shows, "count": len(shows)})
}

// CreateSeats handles POST /v1/shows/:id/seats.  All labels are created or
// none are.
func (h *ShowHandler) CreateSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	var req createSeatsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	seats, err := h.Registry.RegisterSeats(ctx, id, req.Labels)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": seats, "count": len(seats)})
}

// ListSeats handles GET /v1/shows/:id/seats.
func (h *ShowHandler) ListSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	seats, err := h.Registry.ListSeats(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats, "count": len(seats)})
}

// Availability handles GET /v1/shows/:id/availability.
func (h *ShowHandler) Availability(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	seats, err := h.Registry.Availability(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": id, "items": seats, "count": len(seats)})
}
