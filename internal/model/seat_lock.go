package model

import "time"

// LockStatus enumerates the lifecycle states of a SeatLock.  A lock is
// created HELD and moves to exactly one terminal state: CONFIRMED when
// the holder finalises the booking in time, RELEASED when the holder
// abandons the seat explicitly, or EXPIRED when the reaper reclaims a
// hold whose deadline passed.  Terminal states never transition again.
type LockStatus string

const (
	StatusHeld      LockStatus = "HELD"
	StatusConfirmed LockStatus = "CONFIRMED"
	StatusReleased  LockStatus = "RELEASED"
	StatusExpired   LockStatus = "EXPIRED"
)

// Terminal reports whether the status is one of the final states.
func (s LockStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusReleased || s == StatusExpired
}

// SeatLock represents a time-boxed exclusive claim on one seat of one
// trip during checkout.  At most one HELD lock may be active for a
// given (trip, seat) pair at any instant.  Rows are append-only: a new
// acquisition after a terminal lock creates a fresh row rather than
// reusing the old one, preserving history for audit.
//
// Fields:
//  ID             – primary key identifier.
//  TripID         – trip this lock belongs to.
//  SeatNo         – seat identifier within the trip's seat map.
//  HolderID       – UUID of the customer/session holding the seat.
//  Status         – lifecycle state, see LockStatus.
//  ExpiresAt      – absolute deadline after which a HELD lock is dead.
//  IdempotencyKey – client token identifying one logical acquire request.
//  CreatedAt      – when the lock was created.
//  UpdatedAt      – when the lock last changed state (nullable).
//  IsDeleted      – soft-delete marker for operational cleanup.
//  DeletedAt      – when the row was soft-deleted (nullable).
//  DeletedBy      – UUID of the operator who soft-deleted it (nullable).
type SeatLock struct {
	ID             uint64     // seat_locks.id
	TripID         uint64     // seat_locks.trip_id
	SeatNo         string     // seat_locks.seat_no
	HolderID       string     // seat_locks.holder_id
	Status         LockStatus // seat_locks.status
	ExpiresAt      time.Time  // seat_locks.expires_at
	IdempotencyKey string     // seat_locks.idempotency_key
	CreatedAt      time.Time  // seat_locks.created_at
	UpdatedAt      *time.Time // seat_locks.updated_at (nullable)
	IsDeleted      bool       // seat_locks.is_deleted
	DeletedAt      *time.Time // seat_locks.deleted_at (nullable)
	DeletedBy      *string    // seat_locks.deleted_by (nullable)
}

// Active reports whether the lock still blocks competing acquisitions
// at the given instant.  A HELD lock past its deadline is logically
// dead even before the reaper transitions it to EXPIRED.
func (l *SeatLock) Active(now time.Time) bool {
	return l.Status == StatusHeld && l.ExpiresAt.After(now) && !l.IsDeleted
}
