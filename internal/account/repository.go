package account

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrInvalidPhone     = errors.New("phone number must be 9 digits starting with 7 or 9")
)

var phonePattern = regexp.MustCompile(`^(?:\+?251|0)?([79]\d{8})$`)

// NormalizePhone reduces the accepted local and international spellings of a
// number (+2519..., 2519..., 09..., 9...) to its nine significant digits.
func NormalizePhone(phone string) (string, error) {
	m := phonePattern.FindStringSubmatch(strings.TrimSpace(phone))
	if m == nil {
		return "", ErrInvalidPhone
	}
	return m[1], nil
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, email, phone_number, role, is_active, created_at
		FROM users
		WHERE id = $1
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *Repository) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, email, phone_number, role, is_active, created_at
		FROM users
		WHERE phone_number = $1
	`

	var user User
	err = r.db.GetContext(ctx, &user, query, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *Repository) FindBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	query := `
		SELECT id, owner_id, name, contact_email, is_active, created_at
		FROM businesses
		WHERE id = $1
	`

	var b Business
	err := r.db.GetContext(ctx, &b, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *Repository) ListBusinessesByOwner(ctx context.Context, ownerID uuid.UUID) ([]Business, error) {
	query := `
		SELECT id, owner_id, name, contact_email, is_active, created_at
		FROM businesses
		WHERE owner_id = $1 AND is_active = TRUE
		ORDER BY created_at
	`

	businesses := []Business{}
	if err := r.db.SelectContext(ctx, &businesses, query, ownerID); err != nil {
		return nil, err
	}

	return businesses, nil
}
