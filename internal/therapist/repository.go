package therapist

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrLeaveNotFound       = errors.New("leave entry not found")
	ErrTherapistHasClients = errors.New("therapist has assigned clients")
	ErrTherapistInUse      = errors.New("therapist is referenced by appointments")
)

// Repository contains all DB interactions needed by the roster service.
type Repository interface {
	List(ctx context.Context) ([]Therapist, error)
	Get(ctx context.Context, id uuid.UUID) (*Therapist, error)

	Create(ctx context.Context, t Therapist) (*Therapist, error)
	Update(ctx context.Context, t Therapist) (*Therapist, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// For the delete guard
	CountAssignedClients(ctx context.Context, id uuid.UUID) (int, error)

	// ModifyLeaves replaces the leave list with fn's result while holding a
	// row lock, so concurrent leave edits never drop each other's entries.
	ModifyLeaves(ctx context.Context, id uuid.UUID, fn func([]LeaveInterval) ([]LeaveInterval, error)) (*Therapist, error)
}
