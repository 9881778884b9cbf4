package therapist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "name", "email", "phone", "department", "is_active", "notes", "leave_dates", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func TestPgRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM therapists WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			id, "Maya Cohen", strPtr("maya@clinic.org"), nil, "speech_1", true, nil,
			[]byte(`[{"id":"1","from":"2024-06-10","to":"2024-06-12","reason":"Vacation"}]`), now, now))

	repo := NewPgRepository(mock)
	th, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Maya Cohen", th.Name)
	assert.Equal(t, "maya@clinic.org", th.Email)
	assert.Equal(t, "", th.Phone)
	assert.Equal(t, Speech1, th.Department)
	require.Len(t, th.Leaves, 1)
	assert.Equal(t, "Vacation", th.Leaves[0].Reason)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM therapists WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(columns))

	_, err = NewPgRepository(mock).Get(context.Background(), id)
	require.ErrorIs(t, err, ErrTherapistNotFound)
}

func TestPgRepositoryRejectsUnknownDepartment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM therapists ORDER BY name`).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			uuid.New(), "X", nil, nil, "astrology", true, nil, []byte(`[]`), now, now))

	_, err = NewPgRepository(mock).List(context.Background())
	require.Error(t, err)
}

func TestPgRepositoryDeleteForeignKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM therapists WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "schedules_therapist_id_fkey"})

	err = NewPgRepository(mock).Delete(context.Background(), id)
	require.ErrorIs(t, err, ErrTherapistInUse)
}

func TestPgRepositoryCountAssignedClients(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM clients WHERE therapist_id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := NewPgRepository(mock).CountAssignedClients(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryModifyLeavesLocksRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM therapists WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			id, "Omar", nil, nil, "physiotherapy", true, nil, []byte(`[]`), now, now))
	mock.ExpectQuery(`UPDATE therapists\s+SET leave_dates = \$2`).
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			id, "Omar", nil, nil, "physiotherapy", true, nil,
			[]byte(`[{"id":"n","from":"2024-06-10","to":"2024-06-10","reason":"Sick"}]`), now, now))
	mock.ExpectCommit()

	th, err := NewPgRepository(mock).ModifyLeaves(context.Background(), id, func(cur []LeaveInterval) ([]LeaveInterval, error) {
		assert.Empty(t, cur)
		return append(cur, LeaveInterval{ID: "n", From: date("2024-06-10"), To: date("2024-06-10"), Reason: "Sick"}), nil
	})
	require.NoError(t, err)
	require.Len(t, th.Leaves, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
