package auth

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

var adminColumns = []string{"id", "email", "name", "password_hash", "created_at", "updated_at"}

func TestPgRepositoryGetByEmailNormalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT id, email, name, password_hash, created_at, updated_at FROM admins WHERE lower\(email\) = \$1`).
		WithArgs("amy@example.com").
		WillReturnRows(pgxmock.NewRows(adminColumns).AddRow(id, "amy@example.com", "Amy", "hash", now, now))

	a, err := NewPgRepository(mock).GetByEmail(context.Background(), "  Amy@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryCreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO admins`).
		WithArgs("amy@example.com", "Amy", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = NewPgRepository(mock).Create(context.Background(), &Admin{Email: "amy@example.com", Name: "Amy", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdatePasswordMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE admins SET password_hash`).
		WithArgs(id, "hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, NewPgRepository(mock).UpdatePassword(context.Background(), id, "hash"), ErrAdminNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
