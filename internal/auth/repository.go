package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-admin/internal/db"
)

var ErrAdminNotFound = errors.New("admin not found")

// Admin is a panel user. Admins are provisioned out of band.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	Create(ctx context.Context, a *Admin) (*Admin, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

const selectAdmins = `SELECT id, email, name, password_hash, created_at, updated_at FROM admins`

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	return scanAdmin(r.db.QueryRow(ctx, selectAdmins+` WHERE lower(email) = $1`, normalizeEmail(email)))
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return scanAdmin(r.db.QueryRow(ctx, selectAdmins+` WHERE id = $1`, id))
}

func (r *PgRepository) Create(ctx context.Context, a *Admin) (*Admin, error) {
	const q = `
		INSERT INTO admins (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, password_hash, created_at, updated_at`
	created, err := scanAdmin(r.db.QueryRow(ctx, q, normalizeEmail(a.Email), a.Name, a.PasswordHash))
	if err != nil && db.IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	return created, err
}

func (r *PgRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE admins SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
