package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-admin/internal/client"
	"github.com/hackgods/clinic-admin/internal/therapist"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// Shared with the owning packages so callers can match either name.
	ErrClientNotFound    = client.ErrClientNotFound
	ErrTherapistNotFound = therapist.ErrTherapistNotFound
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	List(ctx context.Context) ([]Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForClient(ctx context.Context, clientID uuid.UUID) ([]Appointment, error)

	// For conflict checks: every active appointment on date, all therapists.
	ListActiveOn(ctx context.Context, date time.Time) ([]Appointment, error)

	// Schedule and Reschedule assign the client to the therapist and write
	// the appointment in one transaction.
	Schedule(ctx context.Context, a Appointment) (*Appointment, error)
	Reschedule(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
