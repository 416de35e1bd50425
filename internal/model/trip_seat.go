package model

import "time"

// TripSeat is the per-trip instantiation of a physical seat.  It is
// the authoritative inventory record consulted before any lock is
// granted.  The Booked flag is permanent once set: it flips to true
// exactly once, when a HELD lock is confirmed, and is never cleared by
// the lock engine.
//
// Fields:
//  ID          – primary key identifier.
//  TripID      – trip this seat belongs to.
//  SeatNo      – seat identifier within the trip's seat map.
//  FloorNo     – floor of the vehicle the seat is on.
//  PriceFactor – multiplier applied to the trip base fare for display.
//  Booked      – true once a booking has been finalised for this seat.
//  CreatedAt   – when the record was created.
//  UpdatedAt   – when the record was last modified.
type TripSeat struct {
	ID          uint64    // trip_seats.id
	TripID      uint64    // trip_seats.trip_id
	SeatNo      string    // trip_seats.seat_no
	FloorNo     int       // trip_seats.floor_no
	PriceFactor float64   // trip_seats.price_factor
	Booked      bool      // trip_seats.booked
	CreatedAt   time.Time // trip_seats.created_at
	UpdatedAt   time.Time // trip_seats.updated_at
}
