package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// seatView is one row of the availability listing.  State is derived
// for display: BOOKED wins over everything, an active hold shows as
// HELD, otherwise the seat is FREE.
type seatView struct {
	SeatNo      string  `json:"seat_no"`
	FloorNo     int     `json:"floor_no"`
	PriceFactor float64 `json:"price_factor"`
	State       string  `json:"state"`
	ExpiresAt   string  `json:"expires_at,omitempty"` // only for HELD seats
}

// GetTripSeats handles GET /v1/trips/:id/seats.  It returns the full
// seat map of a trip with derived availability so a client can render
// seat selection.  The view is advisory; acquisition outcomes are
// decided solely by the lock store's conditional write.
func (h *ReservationHandler) GetTripSeats(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	ctx := c.Request().Context()
	seats, err := h.Seats.ListByTrip(ctx, tripID)
	if err != nil {
		return rejection(c, err)
	}
	held, err := h.Locks.ActiveByTrip(ctx, tripID)
	if err != nil {
		return rejection(c, err)
	}
	items := make([]seatView, 0, len(seats))
	for _, seat := range seats {
		view := seatView{
			SeatNo:      seat.SeatNo,
			FloorNo:     seat.FloorNo,
			PriceFactor: seat.PriceFactor,
			State:       "FREE",
		}
		if active, ok := held[seat.SeatNo]; ok {
			view.State = "HELD"
			view.ExpiresAt = active.ExpiresAt.UTC().Format(time.RFC3339)
		}
		if seat.Booked {
			view.State = "BOOKED"
			view.ExpiresAt = ""
		}
		items = append(items, view)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
