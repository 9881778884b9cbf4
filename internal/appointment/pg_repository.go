package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/internal/timefmt"
)

const selectSchedules = `
	SELECT s.id, s.client_id, s.therapist_id, s.date, to_char(s.timeslot, 'HH24:MI'), s.status, s.notes,
	       s.created_at, s.updated_at,
	       c.name, c.display_id, c.expiry_date,
	       t.name, t.department
	FROM %s s
	JOIN clients c ON c.id = s.client_id
	JOIN therapists t ON t.id = s.therapist_id`

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var timeslot, status, department string
	var notes *string

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.TherapistID,
		&a.Date,
		&timeslot,
		&status,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ClientName,
		&a.ClientDisplayID,
		&a.ClientExpiry,
		&a.TherapistName,
		&department,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if a.Start, err = timefmt.ParseClock(timeslot); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	if a.Status, err = ParseStatus(status); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	if a.Department, err = therapist.ParseDepartment(department); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	a.Date = timefmt.DateOf(a.Date)
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) List(ctx context.Context) ([]Appointment, error) {
	appts, err := r.query(ctx, fmt.Sprintf(selectSchedules, "schedules")+` ORDER BY s.date, s.timeslot`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(selectSchedules, "schedules")+` WHERE s.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListForClient(ctx context.Context, clientID uuid.UUID) ([]Appointment, error) {
	appts, err := r.query(ctx, fmt.Sprintf(selectSchedules, "schedules")+`
		WHERE s.client_id = $1
		ORDER BY s.date DESC, s.timeslot DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client appointments: %w", err)
	}
	return appts, nil
}

func (r *PgRepository) ListActiveOn(ctx context.Context, date time.Time) ([]Appointment, error) {
	appts, err := r.query(ctx, fmt.Sprintf(selectSchedules, "schedules")+`
		WHERE s.date = $1
		  AND s.status <> 'cancelled'
		ORDER BY s.timeslot`, timefmt.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments on %s: %w", timefmt.DateKey(date), err)
	}
	return appts, nil
}

func (r *PgRepository) Schedule(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}

	var created *Appointment
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := assignTherapist(ctx, tx, a.ClientID, a.TherapistID); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			WITH s AS (
				INSERT INTO schedules (id, client_id, therapist_id, date, timeslot, status, notes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5::time, $6, $7, now(), now())
				RETURNING *
			)`+fmt.Sprintf(selectSchedules, "s"),
			a.ID, a.ClientID, a.TherapistID, timefmt.DateOf(a.Date), a.Start.Storage(), string(a.Status), nullable(a.Notes))

		var err error
		created, err = scanAppointment(row)
		return err
	})
	if err != nil {
		return nil, mapWriteError("insert appointment", err)
	}
	return created, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, a Appointment) (*Appointment, error) {
	var updated *Appointment
	err := db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := assignTherapist(ctx, tx, a.ClientID, a.TherapistID); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			WITH s AS (
				UPDATE schedules
				SET client_id = $2,
				    therapist_id = $3,
				    date = $4,
				    timeslot = $5::time,
				    status = $6,
				    notes = $7,
				    updated_at = now()
				WHERE id = $1
				RETURNING *
			)`+fmt.Sprintf(selectSchedules, "s"),
			a.ID, a.ClientID, a.TherapistID, timefmt.DateOf(a.Date), a.Start.Storage(), string(a.Status), nullable(a.Notes))

		var err error
		updated, err = scanAppointment(row)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, mapWriteError("update appointment", err)
	}
	return updated, nil
}

// UpdateStatus only moves an appointment that is still in from.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		WITH s AS (
			UPDATE schedules
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING *
		)`+fmt.Sprintf(selectSchedules, "s"), id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// assignTherapist points the client at the therapist it is being booked with.
func assignTherapist(ctx context.Context, tx pgx.Tx, clientID, therapistID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE clients
		SET therapist_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, clientID, therapistID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrTherapistNotFound
		}
		return fmt.Errorf("assign therapist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// mapWriteError keeps sentinel and constraint errors inspectable by callers.
func mapWriteError(op string, err error) error {
	if errors.Is(err, ErrClientNotFound) || errors.Is(err, ErrTherapistNotFound) {
		return err
	}
	if v, ok := db.ConstraintViolation(err); ok && v.Code == db.CodeForeignKeyViolation {
		if strings.Contains(v.Constraint, "therapist") {
			return ErrTherapistNotFound
		}
		return ErrClientNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
