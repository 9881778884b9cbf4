package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrTherapistNotFound = errors.New("assigned therapist does not exist")
)

// Repository contains all DB interactions needed by the client service.
type Repository interface {
	List(ctx context.Context) ([]Client, error)
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]Client, error)

	Create(ctx context.Context, c Client) (*Client, error)
	Update(ctx context.Context, c Client) (*Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
}
