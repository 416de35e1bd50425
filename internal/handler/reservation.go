package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/busline/seat-lock/internal/lock"
	"github.com/busline/seat-lock/internal/queue"
	"github.com/busline/seat-lock/internal/repository"
)

// Machine-readable rejection codes returned by the reservation API.
// They are stable contract values distinct from generic validation
// errors, so checkout clients can branch on them.
const (
	codeSeatUnavailable   = "SEAT_UNAVAILABLE"
	codeSeatAlreadyBooked = "SEAT_ALREADY_BOOKED"
	codeSeatNotFound      = "SEAT_NOT_FOUND"
	codeLockExpired       = "LOCK_EXPIRED"
	codeLockNotFound      = "LOCK_NOT_FOUND"
	codeHolderMismatch    = "HOLDER_MISMATCH"
	codeInternal          = "INTERNAL_ERROR"
)

// ReservationHandler is the thin façade between the checkout flow and
// the lock manager.  It validates request shape, translates manager
// rejections into stable HTTP codes, and on confirmation notifies the
// booking subsystem.  It holds no state of its own; every exclusivity
// decision happens in the manager and the store beneath it.
type ReservationHandler struct {
	Manager *lock.Manager
	Seats   *repository.TripSeatRepo
	Locks   *repository.SeatLockRepo
	// Publish notifies the booking subsystem after a confirmed seat.
	// Nil disables publication (tests, broker-less deployments).
	Publish func(ctx context.Context, ev queue.SeatConfirmedEvent) error
}

// NewReservationHandler constructs a ReservationHandler.  Manager,
// Seats and Locks must be non-nil; Publish may be nil.
func NewReservationHandler(m *lock.Manager, seats *repository.TripSeatRepo, locks *repository.SeatLockRepo,
	publish func(ctx context.Context, ev queue.SeatConfirmedEvent) error) *ReservationHandler {
	if m == nil || seats == nil || locks == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Manager: m, Seats: seats, Locks: locks, Publish: publish}
}

// acquireRequest is the body of POST /v1/locks/acquire.  hold_seconds
// is optional; zero means the server default applies.
type acquireRequest struct {
	TripID         uint64 `json:"trip_id"`
	SeatNo         string `json:"seat_no"`
	HolderID       string `json:"holder_id"`
	IdempotencyKey string `json:"idempotency_key"`
	HoldSeconds    int    `json:"hold_seconds"`
}

// lockRequest is the body shared by confirm and release.
type lockRequest struct {
	TripID   uint64 `json:"trip_id"`
	SeatNo   string `json:"seat_no"`
	HolderID string `json:"holder_id"`
}

// Acquire handles POST /v1/locks/acquire.  On success it returns the
// lock identity and expiry so the client can display a countdown: 201
// for a fresh hold, 200 when the idempotency key replayed an existing
// one.  Contention yields 409 with a machine-readable code.
func (h *ReservationHandler) Acquire(c echo.Context) error {
	var body acquireRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TripID == 0 || body.SeatNo == "" || len(body.SeatNo) > 16 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id and seat_no are required"})
	}
	if _, err := uuid.Parse(body.HolderID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id must be a UUID"})
	}
	if body.IdempotencyKey == "" || len(body.IdempotencyKey) > 80 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "idempotency_key is required"})
	}
	if body.HoldSeconds < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hold_seconds must not be negative"})
	}
	if !holderAuthorized(c, body.HolderID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": codeHolderMismatch})
	}

	acq, err := h.Manager.Acquire(c.Request().Context(),
		body.TripID, body.SeatNo, body.HolderID, body.IdempotencyKey,
		time.Duration(body.HoldSeconds)*time.Second)
	if err != nil {
		return rejection(c, err)
	}
	status := http.StatusCreated
	if acq.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"lock_id":      acq.Lock.ID,
		"status":       acq.Lock.Status,
		"expires_at":   acq.Lock.ExpiresAt.UTC().Format(time.RFC3339),
		"price_factor": acq.PriceFactor,
	})
}

// Confirm handles POST /v1/locks/confirm.  It finalises the caller's
// hold, marks the seat booked, and notifies the booking subsystem.
// An expired hold yields 410 LOCK_EXPIRED and must be re-acquired.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	body, bindErr := bindLockRequest(c)
	if body == nil {
		return bindErr
	}
	confirmed, err := h.Manager.Confirm(c.Request().Context(), body.TripID, body.SeatNo, body.HolderID)
	if err != nil {
		return rejection(c, err)
	}
	if h.Publish != nil {
		ev := queue.SeatConfirmedEvent{
			LockID:      confirmed.ID,
			TripID:      confirmed.TripID,
			SeatNo:      confirmed.SeatNo,
			HolderID:    confirmed.HolderID,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		}
		// Best effort: the lock row is authoritative, a lost event is
		// recovered by the booking subsystem's own reconciliation.
		if err := h.Publish(c.Request().Context(), ev); err != nil {
			log.Printf("reservation: publish seat.confirmed failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": confirmed.Status})
}

// Release handles POST /v1/locks/release: explicit abandonment that
// frees the seat immediately instead of waiting for the reaper.
func (h *ReservationHandler) Release(c echo.Context) error {
	body, bindErr := bindLockRequest(c)
	if body == nil {
		return bindErr
	}
	if err := h.Manager.Release(c.Request().Context(), body.TripID, body.SeatNo, body.HolderID); err != nil {
		return rejection(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "RELEASED"})
}

// validateRequest is the body of POST /v1/locks/validate.
type validateRequest struct {
	TripID uint64 `json:"trip_id"`
	SeatNo string `json:"seat_no"`
}

// Validate handles POST /v1/locks/validate, a read-only availability
// probe: does the seat exist, is it permanently booked, is it under an
// active hold right now.  No lock is created and the answer may be
// stale by the time the client acquires — only the conditional write
// in Acquire decides exclusivity.
func (h *ReservationHandler) Validate(c echo.Context) error {
	var body validateRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TripID == 0 || body.SeatNo == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id and seat_no are required"})
	}
	ctx := c.Request().Context()
	seat, err := h.Seats.GetSeat(ctx, body.TripID, body.SeatNo)
	if err != nil {
		return rejection(c, err)
	}
	active, err := h.Locks.FindActive(ctx, body.TripID, body.SeatNo)
	if err != nil {
		return rejection(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"exists":       true,
		"booked":       seat.Booked,
		"locked":       active != nil,
		"price_factor": seat.PriceFactor,
	})
}

// bindLockRequest binds and validates the shared confirm/release body.
// On failure it writes the 400 response itself and returns a nil body;
// the caller propagates the write result directly.
func bindLockRequest(c echo.Context) (*lockRequest, error) {
	var body lockRequest
	if err := c.Bind(&body); err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TripID == 0 || body.SeatNo == "" {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id and seat_no are required"})
	}
	if _, err := uuid.Parse(body.HolderID); err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id must be a UUID"})
	}
	if !holderAuthorized(c, body.HolderID) {
		return nil, c.JSON(http.StatusForbidden, echo.Map{"error": codeHolderMismatch})
	}
	return &body, nil
}

// holderAuthorized reports whether the request body's holder matches
// the authenticated token subject the JWT middleware stored in context.
// Without a subject (auth disabled) every holder is allowed; with one,
// a caller may only operate on its own locks.
func holderAuthorized(c echo.Context, holderID string) bool {
	sub, ok := c.Get("holder_id").(string)
	if !ok || sub == "" {
		return true
	}
	return sub == holderID
}

// rejection maps engine errors onto HTTP responses with stable codes.
// Store failures surface as 500: the engine never grants a lock it
// cannot prove, so correctness wins over availability.
func rejection(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": codeSeatUnavailable})
	case errors.Is(err, repository.ErrSeatAlreadyBooked):
		return c.JSON(http.StatusConflict, echo.Map{"error": codeSeatAlreadyBooked})
	case errors.Is(err, repository.ErrSeatNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": codeSeatNotFound})
	case errors.Is(err, repository.ErrLockExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": codeLockExpired})
	case errors.Is(err, repository.ErrLockNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": codeLockNotFound})
	default:
		log.Printf("reservation: internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": codeInternal})
	}
}
