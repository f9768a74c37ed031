package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"myme/internal/account"
)

const credentialColumns = `id, name, email, phone_number, role, is_active, password_hash, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Exists(ctx context.Context, email, phone string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR phone_number = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, phone); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Repository) Create(ctx context.Context, c *Credentials) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, name, email, phone_number, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + credentialColumns

	err := r.db.GetContext(ctx, c, query, c.ID, c.Name, c.Email, c.PhoneNumber, c.Role, c.PasswordHash)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrAlreadyRegistered
	}
	return err
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*Credentials, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE phone_number = $1`

	var c Credentials
	err := r.db.GetContext(ctx, &c, query, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateBusiness(ctx context.Context, b *account.Business) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query := `
		INSERT INTO businesses (id, owner_id, name, contact_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, name, contact_email, is_active, created_at
	`
	return r.db.GetContext(ctx, b, query, b.ID, b.OwnerID, b.Name, b.ContactEmail)
}
