package repository // repository for seat lock persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/busline/seat-lock/internal/model"
)

// lockColumns is the canonical column list scanned into model.SeatLock.
const lockColumns = `id, trip_id, seat_no, holder_id, status, expires_at,
       idempotency_key, created_at, updated_at, is_deleted, deleted_at, deleted_by`

// SeatLockRepo provides data access to the seat_locks table.  The table
// is append-only: terminal rows are never reused, a fresh acquisition
// inserts a new row.  All mutation goes through conditional writes so
// that concurrent service instances can never double-grant a seat; the
// database, not in-process state, decides every race.  Timestamp
// comparisons use the database clock (UTC_TIMESTAMP()) so that clock
// skew between horizontally scaled instances cannot reorder expiry.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// CreateHeld inserts a new HELD lock for (trip, seat) only if no active
// lock exists at the moment of the write.  The existence check and the
// insert are a single statement, so among concurrent acquirers exactly
// one row is created; the losers observe zero affected rows, a
// duplicate-key error, or an InnoDB deadlock/lock-wait abort, all of
// which report false here so the caller re-reads the active lock to
// distinguish replay from contention.
// On success the record's ID is populated and true is returned.
func (r *SeatLockRepo) CreateHeld(ctx context.Context, lock *model.SeatLock) (bool, error) {
	const q = `INSERT INTO seat_locks
	        (trip_id, seat_no, holder_id, status, expires_at, idempotency_key, created_at)
	    SELECT ?, ?, ?, 'HELD', ?, ?, ?
	    FROM DUAL
	    WHERE NOT EXISTS (
	        SELECT 1 FROM seat_locks
	        WHERE trip_id = ? AND seat_no = ? AND status = 'HELD'
	          AND expires_at > UTC_TIMESTAMP() AND is_deleted = 0
	    )`
	res, err := r.db.ExecContext(ctx, q,
		lock.TripID, lock.SeatNo, lock.HolderID, lock.ExpiresAt.UTC(), lock.IdempotencyKey, lock.CreatedAt.UTC(),
		lock.TripID, lock.SeatNo,
	)
	if err != nil {
		if isLostRace(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	lock.ID = uint64(id)
	lock.Status = model.StatusHeld
	return true, nil
}

// FindActive returns the current active (HELD, unexpired, not deleted)
// lock for a (trip, seat) pair, or nil when the seat is free.  There is
// at most one such row at any instant.
func (r *SeatLockRepo) FindActive(ctx context.Context, tripID uint64, seatNo string) (*model.SeatLock, error) {
	q := `SELECT ` + lockColumns + `
	    FROM seat_locks
	    WHERE trip_id = ? AND seat_no = ? AND status = 'HELD'
	      AND expires_at > UTC_TIMESTAMP() AND is_deleted = 0
	    LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, tripID, seatNo))
}

// FindByIdempotencyKey looks up a lock by its client-supplied key.  The
// key column carries a unique index, so at most one row matches.  Used
// as the replay fast-path before attempting a conditional insert.
func (r *SeatLockRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.SeatLock, error) {
	q := `SELECT ` + lockColumns + `
	    FROM seat_locks
	    WHERE idempotency_key = ? AND is_deleted = 0
	    LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, key))
}

// LatestByHolderTx returns the most recent lock row the holder created
// for the (trip, seat) pair, regardless of status, within the provided
// transaction.  Used after a failed conditional Confirm to decide
// whether the hold expired or never existed.  A HELD row past its
// deadline is reported as EXPIRED even before the reaper rewrites it;
// the deadline comparison runs on the database clock, the same clock
// every conditional write uses, so the verdict cannot disagree with
// the UPDATE that just missed.
func (r *SeatLockRepo) LatestByHolderTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo, holderID string) (*model.SeatLock, error) {
	const q = `SELECT id, trip_id, seat_no, holder_id,
	        CASE WHEN status = 'HELD' AND expires_at <= UTC_TIMESTAMP() THEN 'EXPIRED' ELSE status END AS status,
	        expires_at, idempotency_key, created_at, updated_at, is_deleted, deleted_at, deleted_by
	    FROM seat_locks
	    WHERE trip_id = ? AND seat_no = ? AND holder_id = ? AND is_deleted = 0
	    ORDER BY id DESC
	    LIMIT 1`
	return r.scanOne(tx.QueryRowContext(ctx, q, tripID, seatNo, holderID))
}

// ConfirmTx transitions the holder's HELD, unexpired lock to CONFIRMED
// within the provided transaction and reports the number of rows
// changed.  Zero means the lock is missing, already terminal, or past
// its deadline; the caller inspects the latest row to tell which.  The
// status and expiry conditions live in the UPDATE itself so a reaper
// racing this call can never overwrite the confirmation, and vice versa.
func (r *SeatLockRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo, holderID string) (int64, error) {
	const q = `UPDATE seat_locks
	    SET status = 'CONFIRMED', updated_at = UTC_TIMESTAMP()
	    WHERE trip_id = ? AND seat_no = ? AND holder_id = ?
	      AND status = 'HELD' AND expires_at > UTC_TIMESTAMP() AND is_deleted = 0`
	res, err := tx.ExecContext(ctx, q, tripID, seatNo, holderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Release transitions the holder's HELD lock to RELEASED and reports
// the number of rows changed.  Expiry is deliberately not checked: a
// holder abandoning a hold that already timed out is harmless, and the
// explicit release frees the seat without waiting for the reaper.
func (r *SeatLockRepo) Release(ctx context.Context, tripID uint64, seatNo, holderID string) (int64, error) {
	const q = `UPDATE seat_locks
	    SET status = 'RELEASED', updated_at = UTC_TIMESTAMP()
	    WHERE trip_id = ? AND seat_no = ? AND holder_id = ?
	      AND status = 'HELD' AND is_deleted = 0`
	res, err := r.db.ExecContext(ctx, q, tripID, seatNo, holderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireDue transitions every HELD lock whose deadline has passed to
// EXPIRED and returns how many were reclaimed.  The transition is
// conditioned on status = HELD, so a lock confirmed or released by its
// holder between sweeps is never overwritten.  Safe to run from any
// number of reaper instances concurrently.
func (r *SeatLockRepo) ExpireDue(ctx context.Context) (int64, error) {
	const q = `UPDATE seat_locks
	    SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP()
	    WHERE status = 'HELD' AND expires_at <= UTC_TIMESTAMP() AND is_deleted = 0`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveByTrip returns all active holds for a trip keyed by seat
// number.  Used by the seat availability view; the result is for
// display only and is never trusted for an exclusivity decision.
func (r *SeatLockRepo) ActiveByTrip(ctx context.Context, tripID uint64) (map[string]model.SeatLock, error) {
	q := `SELECT ` + lockColumns + `
	    FROM seat_locks
	    WHERE trip_id = ? AND status = 'HELD'
	      AND expires_at > UTC_TIMESTAMP() AND is_deleted = 0`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	held := make(map[string]model.SeatLock)
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		held[lock.SeatNo] = *lock
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*model.SeatLock, error) {
	var (
		lock      model.SeatLock
		updatedAt sql.NullTime
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(
		&lock.ID, &lock.TripID, &lock.SeatNo, &lock.HolderID, &lock.Status,
		&lock.ExpiresAt, &lock.IdempotencyKey, &lock.CreatedAt,
		&updatedAt, &lock.IsDeleted, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		lock.UpdatedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		lock.DeletedAt = &t
	}
	if deletedBy.Valid {
		s := deletedBy.String
		lock.DeletedBy = &s
	}
	return &lock, nil
}

// scanOne scans a single lock row, mapping sql.ErrNoRows to (nil, nil)
// so callers can distinguish "no lock" from a query failure.
func (r *SeatLockRepo) scanOne(row *sql.Row) (*model.SeatLock, error) {
	lock, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// isLostRace reports whether err is a MySQL error a losing concurrent
// acquirer can receive from the conditional insert rather than a
// storage failure: a unique constraint violation on idempotency_key
// (1062), or InnoDB aborting this session when several racers gap-lock
// the same free range before inserting — deadlock victim (1213) or
// lock wait timeout (1205).  Each means another writer got there
// first, so the caller treats it as a conditional miss.
func isLostRace(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case 1062, 1213, 1205:
		return true
	}
	return false
}
