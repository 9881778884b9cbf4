package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeExclusionViolation, ConstraintName: "schedules_therapist_overlap_excl"})

	v, ok := ConstraintViolation(err)
	require.True(t, ok)
	assert.Equal(t, CodeExclusionViolation, v.Code)
	assert.Equal(t, "schedules_therapist_overlap_excl", v.Constraint)

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: CodeUniqueViolation}))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: CodeForeignKeyViolation}))

	_, ok = ConstraintViolation(&pgconn.PgError{Code: "42P01"})
	assert.False(t, ok)
	_, ok = ConstraintViolation(errors.New("boom"))
	assert.False(t, ok)
}

func TestInTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE clients`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = InTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `UPDATE clients SET notes = ''`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = InTx(context.Background(), mock, func(tx pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
