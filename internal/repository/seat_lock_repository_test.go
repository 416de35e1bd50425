package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busline/seat-lock/internal/model"
)

const holderA = "6f1e9c2a-42cd-4b6f-9f5a-7a1f2b3c4d5e"

func newLockRepo(t *testing.T) (*SeatLockRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSeatLockRepo(db), mock
}

func lockRows(locks ...model.SeatLock) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "trip_id", "seat_no", "holder_id", "status", "expires_at",
		"idempotency_key", "created_at", "updated_at", "is_deleted", "deleted_at", "deleted_by",
	})
	for _, l := range locks {
		rows.AddRow(l.ID, l.TripID, l.SeatNo, l.HolderID, string(l.Status), l.ExpiresAt,
			l.IdempotencyKey, l.CreatedAt, nil, l.IsDeleted, nil, nil)
	}
	return rows
}

func TestCreateHeldWinsRace(t *testing.T) {
	repo, mock := newLockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO seat_locks").
		WillReturnResult(sqlmock.NewResult(42, 1))

	lock := model.SeatLock{
		TripID: 7, SeatNo: "12A", HolderID: holderA,
		ExpiresAt: now.Add(5 * time.Minute), IdempotencyKey: "key-1", CreatedAt: now,
	}
	created, err := repo.CreateHeld(context.Background(), &lock)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(42), lock.ID)
	assert.Equal(t, model.StatusHeld, lock.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHeldLosesRace(t *testing.T) {
	repo, mock := newLockRepo(t)

	// The conditional insert matched nothing: an active lock exists.
	mock.ExpectExec("INSERT INTO seat_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	lock := model.SeatLock{TripID: 7, SeatNo: "12A", HolderID: holderA, IdempotencyKey: "key-1"}
	created, err := repo.CreateHeld(context.Background(), &lock)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, lock.ID)
}

func TestCreateHeldDuplicateKeyIsConditionalMiss(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectExec("INSERT INTO seat_locks").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'key-1'"})

	lock := model.SeatLock{TripID: 7, SeatNo: "12A", HolderID: holderA, IdempotencyKey: "key-1"}
	created, err := repo.CreateHeld(context.Background(), &lock)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateHeldInnoDBAbortIsConditionalMiss(t *testing.T) {
	// Concurrent racers for the same free seat gap-lock the scanned
	// range before inserting; InnoDB resolves that by aborting all but
	// one session with a deadlock or lock-wait error.  Both mean the
	// acquirer lost the race, not that storage failed.
	cases := []struct {
		name string
		err  *mysql.MySQLError
	}{
		{"deadlock victim", &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newLockRepo(t)
			mock.ExpectExec("INSERT INTO seat_locks").WillReturnError(tc.err)

			lock := model.SeatLock{TripID: 7, SeatNo: "12A", HolderID: holderA, IdempotencyKey: "key-1"}
			created, err := repo.CreateHeld(context.Background(), &lock)
			require.NoError(t, err)
			assert.False(t, created)
		})
	}
}

func TestCreateHeldStoreFailureSurfaces(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectExec("INSERT INTO seat_locks").
		WillReturnError(sql.ErrConnDone)

	lock := model.SeatLock{TripID: 7, SeatNo: "12A", HolderID: holderA, IdempotencyKey: "key-1"}
	created, err := repo.CreateHeld(context.Background(), &lock)
	assert.Error(t, err)
	assert.False(t, created)
}

func TestFindActiveNoLock(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectQuery("FROM seat_locks").WillReturnRows(lockRows())

	lock, err := repo.FindActive(context.Background(), 7, "12A")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestFindActiveReturnsLock(t *testing.T) {
	repo, mock := newLockRepo(t)
	now := time.Now().UTC()

	want := model.SeatLock{
		ID: 9, TripID: 7, SeatNo: "12A", HolderID: holderA, Status: model.StatusHeld,
		ExpiresAt: now.Add(time.Minute), IdempotencyKey: "key-1", CreatedAt: now,
	}
	mock.ExpectQuery("FROM seat_locks").WillReturnRows(lockRows(want))

	lock, err := repo.FindActive(context.Background(), 7, "12A")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, want.ID, lock.ID)
	assert.Equal(t, want.HolderID, lock.HolderID)
	assert.Equal(t, want.IdempotencyKey, lock.IdempotencyKey)
}

func TestConfirmTxReportsRowsChanged(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE seat_locks").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	n, err := repo.ConfirmTx(context.Background(), tx, 7, "12A", holderA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLatestByHolderDerivesExpiryOnDatabaseClock(t *testing.T) {
	repo, mock := newLockRepo(t)
	now := time.Now().UTC()

	// The query itself must rewrite an overdue HELD row to EXPIRED via
	// UTC_TIMESTAMP, so the verdict never depends on the process clock.
	overdue := model.SeatLock{ID: 5, TripID: 7, SeatNo: "12A", HolderID: holderA,
		Status: model.StatusExpired, ExpiresAt: now.Add(-time.Second), IdempotencyKey: "key-1", CreatedAt: now}
	mock.ExpectBegin()
	mock.ExpectQuery("CASE WHEN status = 'HELD' AND expires_at <= UTC_TIMESTAMP").
		WillReturnRows(lockRows(overdue))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	lock, err := repo.LatestByHolderTx(context.Background(), tx, 7, "12A", holderA)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, model.StatusExpired, lock.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseMissReportsZero(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectExec("UPDATE seat_locks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Release(context.Background(), 7, "12A", holderA)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireDueCountsReclaimed(t *testing.T) {
	repo, mock := newLockRepo(t)

	mock.ExpectExec("UPDATE seat_locks").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestActiveByTripKeysBySeat(t *testing.T) {
	repo, mock := newLockRepo(t)
	now := time.Now().UTC()

	a := model.SeatLock{ID: 1, TripID: 7, SeatNo: "5B", HolderID: holderA,
		Status: model.StatusHeld, ExpiresAt: now.Add(time.Minute), IdempotencyKey: "k1", CreatedAt: now}
	b := model.SeatLock{ID: 2, TripID: 7, SeatNo: "5C", HolderID: holderA,
		Status: model.StatusHeld, ExpiresAt: now.Add(time.Minute), IdempotencyKey: "k2", CreatedAt: now}
	mock.ExpectQuery("FROM seat_locks").WillReturnRows(lockRows(a, b))

	held, err := repo.ActiveByTrip(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, uint64(1), held["5B"].ID)
	assert.Equal(t, uint64(2), held["5C"].ID)
}
