package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newSlotRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSlotRepositoryClaimAssignsFreeSlot(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	facultyID := "fac-1"
	rows := sqlmock.NewRows([]string{"id", "session_id", "room", "status", "faculty_id", "updated_at"}).
		AddRow("slot-1", "sess-1", "R1", "assigned", &facultyID, time.Now())
	mock.ExpectQuery(`UPDATE room_slots SET faculty_id = \$2, status = 'assigned'`).
		WithArgs("sess-1", "fac-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	slot, err := repo.Claim(context.Background(), db, "sess-1", "fac-1")
	require.NoError(t, err)
	require.Equal(t, "slot-1", slot.ID)
	require.Equal(t, "R1", slot.Room)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryClaimNoFreeSlot(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectQuery(`UPDATE room_slots SET faculty_id = \$2, status = 'assigned'`).
		WithArgs("sess-1", "fac-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	slot, err := repo.Claim(context.Background(), db, "sess-1", "fac-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Nil(t, slot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryReleaseNotHeld(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec(`UPDATE room_slots SET faculty_id = NULL, status = 'free'`).
		WithArgs("slot-1", "fac-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Release(context.Background(), db, "slot-1", "fac-2")
	require.NoError(t, err)
	require.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryReleaseHeld(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec(`UPDATE room_slots SET faculty_id = NULL, status = 'free'`).
		WithArgs("slot-1", "fac-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Release(context.Background(), db, "slot-1", "fac-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryAssignSlotAlreadyTaken(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewSlotRepository(db)

	mock.ExpectExec(`UPDATE room_slots SET faculty_id = \$2, status = 'assigned'`).
		WithArgs("slot-1", "fac-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignSlot(context.Background(), db, "slot-1", "fac-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
