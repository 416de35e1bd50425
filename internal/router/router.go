package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/busline/seat-lock/internal/handler"
	"github.com/busline/seat-lock/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check
// used by load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterReservation registers the reservation API under /v1.  The
// rate limiter always applies; JWT authentication applies only when a
// secret is configured, so local deployments can run the engine
// without the external identity service.
func RegisterReservation(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if jwtSecret != "" {
		g.Use(middleware.JWTAuth(jwtSecret))
	}
	if limiter != nil {
		g.Use(limiter)
	}

	// Lock state machine: acquire a time-boxed hold, finalise it into a
	// booking, or abandon it.  Validate is a read-only probe.
	g.POST("/locks/acquire", h.Acquire)
	g.POST("/locks/confirm", h.Confirm)
	g.POST("/locks/release", h.Release)
	g.POST("/locks/validate", h.Validate)

	// Seat availability view for rendering seat selection.
	g.GET("/trips/:id/seats", h.GetTripSeats)
}
