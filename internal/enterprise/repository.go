package enterprise

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	enterpriseColumns = `id, long_name, short_name, description, is_active, pull_limit, created_at`
	accessKeyColumns  = `id, access_id, secret_hash, enterprise_id, is_active, expires_at, created_at`
	grantColumns      = `id, user_id, enterprise_id, max_amount, expires_at, grant_status, is_active, metadata, created_at, updated_at`
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateEnterprise(ctx context.Context, e *Enterprise) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO enterprises (id, long_name, short_name, description, is_active, pull_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + enterpriseColumns

	return r.db.GetContext(ctx, e, query, e.ID, e.LongName, e.ShortName, e.Description, e.IsActive, e.PullLimit)
}

func (r *Repository) GetEnterprise(ctx context.Context, id uuid.UUID) (*Enterprise, error) {
	var e Enterprise
	err := r.db.GetContext(ctx, &e, `SELECT `+enterpriseColumns+` FROM enterprises WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEnterpriseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) CreateAccessKey(ctx context.Context, k *AccessKey) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	query := `
		INSERT INTO access_keys (id, access_id, secret_hash, enterprise_id, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accessKeyColumns

	return r.db.GetContext(ctx, k, query, k.ID, k.AccessID, k.SecretHash, k.EnterpriseID, k.IsActive, k.ExpiresAt)
}

func (r *Repository) GetAccessKey(ctx context.Context, accessID string) (*AccessKey, error) {
	var k AccessKey
	err := r.db.GetContext(ctx, &k, `SELECT `+accessKeyColumns+` FROM access_keys WHERE access_id = $1`, accessID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *Repository) CreateGrant(ctx context.Context, g *UserGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	query := `
		INSERT INTO user_grants (id, user_id, enterprise_id, max_amount, expires_at, grant_status, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + grantColumns

	return r.db.GetContext(ctx, g, query,
		g.ID, g.UserID, g.EnterpriseID, g.MaxAmount, g.ExpiresAt, g.Status, g.IsActive, g.Metadata)
}

func (r *Repository) GetGrant(ctx context.Context, id uuid.UUID) (*UserGrant, error) {
	var g UserGrant
	err := r.db.GetContext(ctx, &g, `SELECT `+grantColumns+` FROM user_grants WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) WithGrantLocked(ctx context.Context, id uuid.UUID, fn func(g *UserGrant) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var g UserGrant
	err = tx.GetContext(ctx, &g, `SELECT `+grantColumns+` FROM user_grants WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGrantNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(&g); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ListGrantsByEnterprise(ctx context.Context, enterpriseID uuid.UUID, status GrantStatus, userID *uuid.UUID) ([]UserGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM user_grants
		WHERE enterprise_id = $1
		  AND ($2 = '' OR grant_status = $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY created_at DESC
	`

	grants := []UserGrant{}
	err := r.db.SelectContext(ctx, &grants, query, enterpriseID, string(status), userID)
	return grants, err
}

func (r *Repository) ListGrantsByUser(ctx context.Context, userID uuid.UUID, status GrantStatus) ([]UserGrant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM user_grants
		WHERE user_id = $1
		  AND ($2 = '' OR grant_status = $2)
		ORDER BY created_at DESC
	`

	grants := []UserGrant{}
	err := r.db.SelectContext(ctx, &grants, query, userID, string(status))
	return grants, err
}

func (r *Repository) TransitionGrant(ctx context.Context, id, userID uuid.UUID, from []GrantStatus, to GrantStatus, active bool) (*UserGrant, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `
		UPDATE user_grants
		SET grant_status = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND grant_status = ANY($5)
		RETURNING ` + grantColumns

	var g UserGrant
	err := r.db.GetContext(ctx, &g, query, id, userID, to, active, pq.Array(allowed))
	if err == nil {
		return &g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: either the grant is not the user's or it is in a
	// status that cannot move to the target.
	current, err := r.GetGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrGrantNotFound
	}
	return nil, ErrInvalidGrantTransition
}
