package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/therapist"
)

// selectClients joins the assigned therapist so therapy type is always read
// from the therapist's current department.
const selectClients = `
	SELECT c.id, c.display_id, c.name, c.email, c.phone, c.age, c.address, c.notes,
	       c.expiry_date, c.payment_status, c.total_amount, c.paid_amount,
	       c.payment_method, c.payment_notes, c.therapist_id,
	       t.name, t.department,
	       c.created_at, c.updated_at
	FROM %s c
	LEFT JOIN therapists t ON t.id = c.therapist_id`

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email, phone, address, notes, method, paymentNotes, therapistName, department *string
	var payment string
	var total, paid *float64

	err := row.Scan(
		&c.ID,
		&c.DisplayID,
		&c.Name,
		&email,
		&phone,
		&c.Age,
		&address,
		&notes,
		&c.ExpiryDate,
		&payment,
		&total,
		&paid,
		&method,
		&paymentNotes,
		&c.TherapistID,
		&therapistName,
		&department,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.PaymentStatus, err = ParsePaymentStatus(payment)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", c.ID, err)
	}
	if department != nil {
		if c.TherapyType, err = therapist.ParseDepartment(*department); err != nil {
			return nil, fmt.Errorf("client %s: %w", c.ID, err)
		}
	}
	c.Email = deref(email)
	c.Phone = deref(phone)
	c.Address = deref(address)
	c.Notes = deref(notes)
	c.PaymentMethod = deref(method)
	c.PaymentNotes = deref(paymentNotes)
	c.TherapistName = deref(therapistName)
	if total != nil {
		c.TotalAmount = *total
	}
	if paid != nil {
		c.PaidAmount = *paid
	}

	return &c, nil
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]Client, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) List(ctx context.Context) ([]Client, error) {
	clients, err := r.query(ctx, fmt.Sprintf(selectClients, "clients")+` ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(selectClients, "clients")+` WHERE c.id = $1`, id)
	return scanClient(row)
}

func (r *PgRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]Client, error) {
	clients, err := r.query(ctx, fmt.Sprintf(selectClients, "clients")+` WHERE c.id = ANY($1) ORDER BY c.display_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get clients: %w", err)
	}
	return clients, nil
}

func (r *PgRepository) Create(ctx context.Context, c Client) (*Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		WITH c AS (
			INSERT INTO clients (id, name, email, phone, age, address, notes, expiry_date, payment_status,
			                     total_amount, paid_amount, payment_method, payment_notes, therapist_id,
			                     created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
			RETURNING *
		)`+fmt.Sprintf(selectClients, "c"),
		c.ID, c.Name, nullable(c.Email), nullable(c.Phone), c.Age, nullable(c.Address), nullable(c.Notes),
		nullableDate(c.ExpiryDate), string(c.PaymentStatus), c.TotalAmount, c.PaidAmount,
		nullable(c.PaymentMethod), nullable(c.PaymentNotes), c.TherapistID)

	created, err := scanClient(row)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, c Client) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		WITH c AS (
			UPDATE clients
			SET name = $2,
			    email = $3,
			    phone = $4,
			    age = $5,
			    address = $6,
			    notes = $7,
			    expiry_date = $8,
			    payment_status = $9,
			    total_amount = $10,
			    paid_amount = $11,
			    payment_method = $12,
			    payment_notes = $13,
			    therapist_id = $14,
			    updated_at = now()
			WHERE id = $1
			RETURNING *
		)`+fmt.Sprintf(selectClients, "c"),
		c.ID, c.Name, nullable(c.Email), nullable(c.Phone), c.Age, nullable(c.Address), nullable(c.Notes),
		nullableDate(c.ExpiryDate), string(c.PaymentStatus), c.TotalAmount, c.PaidAmount,
		nullable(c.PaymentMethod), nullable(c.PaymentNotes), c.TherapistID)

	updated, err := scanClient(row)
	if err != nil {
		switch {
		case errors.Is(err, ErrClientNotFound):
			return nil, err
		case db.IsForeignKeyViolation(err):
			return nil, ErrTherapistNotFound
		}
		return nil, fmt.Errorf("update client: %w", err)
	}
	return updated, nil
}

// Delete removes the client. Their appointments go with them (ON DELETE CASCADE).
func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (r *PgRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete clients: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
