package account

import (
	"context"

	"github.com/google/uuid"
)

// Directory resolves people and businesses for the money-moving packages.
type Directory interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	FindBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error)
	ListBusinessesByOwner(ctx context.Context, ownerID uuid.UUID) ([]Business, error)
}
