// Package lock implements the seat lock state machine: exclusive,
// time-boxed holds acquired during checkout, confirmed into permanent
// bookings, released explicitly, or reclaimed by the expiry reaper.
// The engine is stateless; every exclusivity decision is delegated to
// a conditional write in the lock store so that any number of service
// instances can run concurrently.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/busline/seat-lock/internal/model"
	"github.com/busline/seat-lock/internal/repository"
)

// lockStore is the slice of the lock repository the manager needs.
// The contract behind CreateHeld is what the whole engine rests on: a
// conditional insert that succeeds for at most one of any set of
// concurrent callers while an active lock covers the seat.
type lockStore interface {
	CreateHeld(ctx context.Context, lock *model.SeatLock) (bool, error)
	FindActive(ctx context.Context, tripID uint64, seatNo string) (*model.SeatLock, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.SeatLock, error)
	ConfirmTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo, holderID string) (int64, error)
	LatestByHolderTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo, holderID string) (*model.SeatLock, error)
	Release(ctx context.Context, tripID uint64, seatNo, holderID string) (int64, error)
}

// seatInventory is the slice of the seat repository the manager needs.
type seatInventory interface {
	GetSeat(ctx context.Context, tripID uint64, seatNo string) (*model.TripSeat, error)
	MarkBookedTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatNo string) error
}

// Manager coordinates seat lock transitions against the lock store and
// the seat inventory.  It performs no internal retries: contention is
// surfaced to the caller as a typed rejection and retry policy belongs
// to the checkout flow.
type Manager struct {
	db          *sql.DB
	locks       lockStore
	seats       seatInventory
	defaultHold time.Duration
}

// NewManager constructs a Manager.  defaultHold is applied when an
// acquire request does not specify its own hold duration.
func NewManager(db *sql.DB, locks lockStore, seats seatInventory, defaultHold time.Duration) *Manager {
	if db == nil || locks == nil || seats == nil {
		panic("nil dependency passed to NewManager")
	}
	return &Manager{db: db, locks: locks, seats: seats, defaultHold: defaultHold}
}

// Acquisition is the successful outcome of Acquire.  PriceFactor is
// carried through from the seat inventory for display only; the engine
// computes no prices.  Replayed marks an idempotent re-submission that
// returned the original lock instead of creating a new one.
type Acquisition struct {
	Lock        model.SeatLock
	PriceFactor float64
	Replayed    bool
}

// Acquire claims an exclusive hold on one seat of one trip.
//
// The seat must exist and not be permanently booked.  If the same
// holder re-submits the same idempotency key while the original hold
// is still active, the original lock is returned unchanged — the
// expiry clock is not reset.  Any other conflict with an active hold
// is rejected with ErrSeatUnavailable.  The availability check and the
// insert are a single conditional statement in the store, so exactly
// one of any set of concurrent acquirers wins.
func (m *Manager) Acquire(ctx context.Context, tripID uint64, seatNo, holderID, idemKey string, hold time.Duration) (*Acquisition, error) {
	seat, err := m.seats.GetSeat(ctx, tripID, seatNo)
	if err != nil {
		return nil, err
	}
	if seat.Booked {
		return nil, repository.ErrSeatAlreadyBooked
	}
	if hold <= 0 {
		hold = m.defaultHold
	}

	// Replay fast path: a known idempotency key either matches our own
	// active hold (return it untouched) or is spent, in which case the
	// request must not be merged into someone else's lock.
	existing, err := m.locks.FindByIdempotencyKey(ctx, idemKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		if existing.TripID == tripID && existing.SeatNo == seatNo &&
			existing.HolderID == holderID && existing.Active(time.Now().UTC()) {
			return &Acquisition{Lock: *existing, PriceFactor: seat.PriceFactor, Replayed: true}, nil
		}
		return nil, repository.ErrSeatUnavailable
	}

	now := time.Now().UTC()
	candidate := model.SeatLock{
		TripID:         tripID,
		SeatNo:         seatNo,
		HolderID:       holderID,
		Status:         model.StatusHeld,
		ExpiresAt:      now.Add(hold),
		IdempotencyKey: idemKey,
		CreatedAt:      now,
	}
	created, err := m.locks.CreateHeld(ctx, &candidate)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		return &Acquisition{Lock: candidate, PriceFactor: seat.PriceFactor}, nil
	}

	// Lost the conditional write.  If the winner is our own lock from a
	// concurrent replay of the same request, honour the idempotence
	// contract; otherwise the seat belongs to someone else.
	active, err := m.locks.FindActive(ctx, tripID, seatNo)
	if err != nil {
		return nil, fmt.Errorf("acquire conflict lookup: %w", err)
	}
	if active != nil && active.HolderID == holderID && active.IdempotencyKey == idemKey {
		return &Acquisition{Lock: *active, PriceFactor: seat.PriceFactor, Replayed: true}, nil
	}
	return nil, repository.ErrSeatUnavailable
}

// Confirm finalises the holder's HELD, unexpired lock: the lock moves
// to CONFIRMED and the seat inventory's booked flag is set, both inside
// one transaction.  A lock past its deadline yields ErrLockExpired and
// the caller must re-acquire.  Confirming an already-confirmed lock is
// a no-op success so that a retried confirmation cannot fail spuriously.
func (m *Manager) Confirm(ctx context.Context, tripID uint64, seatNo, holderID string) (*model.SeatLock, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	n, err := m.locks.ConfirmTx(ctx, tx, tripID, seatNo, holderID)
	if err != nil {
		return nil, fmt.Errorf("confirm lock: %w", err)
	}
	if n == 0 {
		latest, err := m.locks.LatestByHolderTx(ctx, tx, tripID, seatNo, holderID)
		if err != nil {
			return nil, fmt.Errorf("confirm lookup: %w", err)
		}
		switch {
		case latest == nil:
			return nil, repository.ErrLockNotFound
		case latest.Status == model.StatusConfirmed:
			// Retried confirmation; the booked flag is already set.
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit confirm tx: %w", err)
			}
			committed = true
			return latest, nil
		case latest.Status == model.StatusExpired:
			// Includes holds past their deadline the reaper has not yet
			// rewritten; the store derives that on the database clock.
			return nil, repository.ErrLockExpired
		default:
			return nil, repository.ErrLockNotFound
		}
	}

	if err := m.seats.MarkBookedTx(ctx, tx, tripID, seatNo); err != nil {
		return nil, fmt.Errorf("mark seat booked: %w", err)
	}
	confirmed, err := m.locks.LatestByHolderTx(ctx, tx, tripID, seatNo, holderID)
	if err != nil {
		return nil, fmt.Errorf("confirm readback: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm tx: %w", err)
	}
	committed = true
	return confirmed, nil
}

// Release abandons the holder's HELD lock, freeing the seat for others
// without waiting for the reaper.  Terminal locks are untouchable:
// releasing a confirmed or already-released lock yields ErrLockNotFound.
func (m *Manager) Release(ctx context.Context, tripID uint64, seatNo, holderID string) error {
	n, err := m.locks.Release(ctx, tripID, seatNo, holderID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if n == 0 {
		return repository.ErrLockNotFound
	}
	return nil
}
