// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as the lock manager and handlers to distinguish between
// different failure scenarios without string matching. Contention
// (ErrSeatUnavailable) and staleness (ErrLockExpired) are expected,
// recoverable outcomes; they are never retried inside the engine —
// retry policy belongs to the checkout flow.
package repository

import "errors"

// ErrSeatNotFound is returned when the requested (trip, seat) pair
// does not exist in the trip_seats inventory. Handlers should
// translate this into an HTTP 404 response.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSeatAlreadyBooked is returned when a lock is requested against a
// seat whose booked flag is already set. Booked is permanent, so this
// rejection is final for the seat regardless of lock table state.
var ErrSeatAlreadyBooked = errors.New("seat already booked")

// ErrSeatUnavailable is returned when another holder owns an active,
// non-expired lock on the seat, or when the same holder retries with
// a different idempotency key while an earlier hold is still active.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrLockExpired is returned when the caller's own lock outlived its
// deadline before Confirm. The caller must re-acquire.
var ErrLockExpired = errors.New("lock expired")

// ErrLockNotFound is returned when an operation references a lock
// that does not exist or is no longer HELD for the given holder.
var ErrLockNotFound = errors.New("lock not found")
