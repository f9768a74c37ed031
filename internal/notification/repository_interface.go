package notification

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, n *Notification) error
	// ListForUser returns the user's notifications, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error)
}
