// Package queue defines message payloads exchanged over the message broker.
package queue

// SeatConfirmedEvent is published when a seat lock is confirmed.  It
// tells the booking subsystem that the seat is provisionally secured
// for the holder; that subsystem owns payment, fare and promotion
// pricing, and the final booking record.  The payload carries enough
// identity for downstream consumers to act without querying the lock
// store.
type SeatConfirmedEvent struct {
	LockID      uint64 `json:"lock_id"`
	TripID      uint64 `json:"trip_id"`
	SeatNo      string `json:"seat_no"`
	HolderID    string `json:"holder_id"`
	ConfirmedAt string `json:"confirmed_at"`
}
