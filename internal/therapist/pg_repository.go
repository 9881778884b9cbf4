package therapist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-admin/internal/db"
)

const therapistColumns = `id, name, email, phone, department, is_active, notes, leave_dates, created_at, updated_at`

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	var email, phone, notes *string
	var department string
	var leaves []byte

	err := row.Scan(
		&t.ID,
		&t.Name,
		&email,
		&phone,
		&department,
		&t.IsActive,
		&notes,
		&leaves,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	t.Department, err = ParseDepartment(department)
	if err != nil {
		return nil, fmt.Errorf("therapist %s: %w", t.ID, err)
	}
	t.Email = deref(email)
	t.Phone = deref(phone)
	t.Notes = deref(notes)

	if len(leaves) > 0 {
		if err := json.Unmarshal(leaves, &t.Leaves); err != nil {
			return nil, fmt.Errorf("therapist %s: decode leave_dates: %w", t.ID, err)
		}
	}
	if t.Leaves == nil {
		t.Leaves = []LeaveInterval{}
	}

	return &t, nil
}

func (r *PgRepository) List(ctx context.Context) ([]Therapist, error) {
	rows, err := r.db.Query(ctx, `SELECT `+therapistColumns+` FROM therapists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}
	defer rows.Close()

	var result []Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}
	return result, nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.db.QueryRow(ctx, `SELECT `+therapistColumns+` FROM therapists WHERE id = $1`, id)
	return scanTherapist(row)
}

func (r *PgRepository) Create(ctx context.Context, t Therapist) (*Therapist, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	leaves, err := encodeLeaves(t.Leaves)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO therapists (id, name, email, phone, department, is_active, notes, leave_dates, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+therapistColumns,
		t.ID, t.Name, nullable(t.Email), nullable(t.Phone), string(t.Department), t.IsActive, nullable(t.Notes), leaves)

	created, err := scanTherapist(row)
	if err != nil {
		return nil, fmt.Errorf("insert therapist: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, t Therapist) (*Therapist, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE therapists
		SET name = $2,
		    email = $3,
		    phone = $4,
		    department = $5,
		    is_active = $6,
		    notes = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+therapistColumns,
		t.ID, t.Name, nullable(t.Email), nullable(t.Phone), string(t.Department), t.IsActive, nullable(t.Notes))

	updated, err := scanTherapist(row)
	if err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update therapist: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM therapists WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrTherapistInUse
		}
		return fmt.Errorf("delete therapist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTherapistNotFound
	}
	return nil
}

func (r *PgRepository) CountAssignedClients(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE therapist_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assigned clients: %w", err)
	}
	return n, nil
}

func (r *PgRepository) ModifyLeaves(ctx context.Context, id uuid.UUID, fn func([]LeaveInterval) ([]LeaveInterval, error)) (*Therapist, error) {
	var updated *Therapist

	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := scanTherapist(tx.QueryRow(ctx, `SELECT `+therapistColumns+` FROM therapists WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		next, err := fn(current.Leaves)
		if err != nil {
			return err
		}
		encoded, err := encodeLeaves(next)
		if err != nil {
			return err
		}

		updated, err = scanTherapist(tx.QueryRow(ctx, `
			UPDATE therapists
			SET leave_dates = $2,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+therapistColumns, id, encoded))
		if err != nil {
			return fmt.Errorf("update leave_dates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func encodeLeaves(leaves []LeaveInterval) ([]byte, error) {
	if leaves == nil {
		leaves = []LeaveInterval{}
	}
	data, err := json.Marshal(leaves)
	if err != nil {
		return nil, fmt.Errorf("encode leave_dates: %w", err)
	}
	return data, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
