package enterprise

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	CreateEnterprise(ctx context.Context, e *Enterprise) error
	GetEnterprise(ctx context.Context, id uuid.UUID) (*Enterprise, error)

	CreateAccessKey(ctx context.Context, k *AccessKey) error
	GetAccessKey(ctx context.Context, accessID string) (*AccessKey, error)

	CreateGrant(ctx context.Context, g *UserGrant) error
	GetGrant(ctx context.Context, id uuid.UUID) (*UserGrant, error)
	ListGrantsByEnterprise(ctx context.Context, enterpriseID uuid.UUID, status GrantStatus, userID *uuid.UUID) ([]UserGrant, error)
	ListGrantsByUser(ctx context.Context, userID uuid.UUID, status GrantStatus) ([]UserGrant, error)

	// WithGrantLocked runs fn while holding the grant's row lock. Grant
	// transitions wait until fn returns, so a pull never races a suspension.
	WithGrantLocked(ctx context.Context, id uuid.UUID, fn func(g *UserGrant) error) error

	// TransitionGrant moves a grant owned by userID to status if it is
	// currently in one of from. A grant in another status yields
	// ErrInvalidGrantTransition.
	TransitionGrant(ctx context.Context, id, userID uuid.UUID, from []GrantStatus, to GrantStatus, active bool) (*UserGrant, error)
}
