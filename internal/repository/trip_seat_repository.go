package repository // repository for trip seat inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/busline/seat-lock/internal/model"
)

// TripSeatRepo encapsulates read access to the trip_seats inventory.
// The lock engine consults it to validate that a seat exists and is
// not permanently booked; the only write it ever performs is setting
// the booked flag at confirmation time, inside the same transaction
// that confirms the lock.
type TripSeatRepo struct {
	db *sql.DB
}

// NewTripSeatRepo constructs a TripSeatRepo given a DB handle.
func NewTripSeatRepo(db *sql.DB) *TripSeatRepo {
	return &TripSeatRepo{db: db}
}

// DB exposes the underlying handle so callers can open transactions
// spanning trip_seats and seat_locks.
func (r *TripSeatRepo) DB() *sql.DB { return r.db }

// GetSeat fetches the inventory record for one seat of one trip.  It
// returns ErrSeatNotFound when the pair does not exist.
func (r *TripSeatRepo) GetSeat(ctx context.Context, tripID uint64, seatNo string) (*model.TripSeat, error) {
	const q = `SELECT id, trip_id, seat_no, floor_no, price_factor, booked, created_at, updated_at
	    FROM trip_seats
	    WHERE trip_id = ? AND seat_no = ?`
	var seat model.TripSeat
	err := r.db.QueryRowContext(ctx, q, tripID, seatNo).Scan(
		&seat.ID, &seat.TripID, &seat.SeatNo, &seat.FloorNo,
		&seat.PriceFactor, &seat.Booked, &seat.CreatedAt, &seat.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// MarkBookedTx sets the booked flag for a seat within the provided
// transaction.  Booked is permanent: the statement carries no reverse
// path and affecting zero rows is not an error (the flag may already
// be set when a confirmation is retried).
func (r *TripSeatRepo) MarkBookedTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo string) error {
	const q = `UPDATE trip_seats
	    SET booked = 1, updated_at = UTC_TIMESTAMP()
	    WHERE trip_id = ? AND seat_no = ?`
	_, err := tx.ExecContext(ctx, q, tripID, seatNo)
	return err
}

// ListByTrip returns all inventory records for a trip ordered by seat
// number, for the availability view.
func (r *TripSeatRepo) ListByTrip(ctx context.Context, tripID uint64) ([]model.TripSeat, error) {
	const q = `SELECT id, trip_id, seat_no, floor_no, price_factor, booked, created_at, updated_at
	    FROM trip_seats
	    WHERE trip_id = ?
	    ORDER BY seat_no`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.TripSeat
	for rows.Next() {
		var seat model.TripSeat
		if err := rows.Scan(
			&seat.ID, &seat.TripID, &seat.SeatNo, &seat.FloorNo,
			&seat.PriceFactor, &seat.Booked, &seat.CreatedAt, &seat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
