package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql" // readiness probe pings the database

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/event-ticketing/internal/handler"    // handlers that implement each endpoint
	"github.com/iliyamo/event-ticketing/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/event-ticketing/internal/model"      // role names
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers all authentication‑related routes.  Session
// operations live under /v1/auth; GET /v1/me requires an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh_token body (one session) or a bearer
	// token (all sessions), so it is not behind JWTAuth.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterShows registers the show and seat endpoints.  Reads are public
// and go through the response cache; writes require the ORGANIZER role.
func RegisterShows(e *echo.Echo, h *handler.ShowHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/v1/shows", h.ListShows, cache)
	e.GET("/v1/shows/:id", h.GetShow, cache)
	e.GET("/v1/shows/:id/seats", h.ListSeats, cache)
	e.GET("/v1/shows/:id/availability", h.Availability, cache)

	organizer := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer),
	}
	e.POST("/v1/shows", h.CreateShow, organizer...)
	e.POST("/v1/shows/:id/seats", h.CreateSeats, organizer...)
}

// RegisterReservations registers the reservation lifecycle.  Every route
// requires a valid JWT; holds additionally pass through holdLimiter.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, holdLimiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleOrganizer),
	)
	g.POST("/hold", h.Hold, holdLimiter)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/release", h.Release)
	g.GET("/:id", h.Get)

	e.GET("/v1/my-reservations", h.Mine, middleware.JWTAuth(jwtSecret))
}
