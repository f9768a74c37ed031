package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const notificationColumns = "id, user_id, title, content, created_at"

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, user_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + notificationColumns

	return r.db.GetContext(ctx, n, query, n.ID, n.UserID, n.Title, n.Content)
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	out := []Notification{}
	if err := r.db.SelectContext(ctx, &out, query, userID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}
