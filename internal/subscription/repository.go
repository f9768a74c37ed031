package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	planColumns         = `id, business_id, name, frequency_days, price, is_active, created_at`
	subscriptionColumns = `id, user_id, plan_id, is_active, next_billing_at, last_transaction_id, created_at, updated_at`
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreatePlan(ctx context.Context, p *Plan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO plans (id, business_id, name, frequency_days, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+planColumns,
		p.ID, p.BusinessID, p.Name, p.FrequencyDays, p.Price, p.IsActive,
	).StructScan(p)
}

func (r *Repository) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p := &Plan{}
	err := r.db.GetContext(ctx, p, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) ListPlans(ctx context.Context, businessID *uuid.UUID) ([]Plan, error) {
	plans := []Plan{}
	err := r.db.SelectContext(ctx, &plans, `
		SELECT `+planColumns+`
		FROM plans
		WHERE is_active
		  AND ($1::uuid IS NULL OR business_id = $1)
		ORDER BY created_at DESC
	`, businessID)
	return plans, err
}

func (r *Repository) GetSubscription(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	s := &UserSubscription{}
	err := r.db.GetContext(ctx, s, `
		SELECT `+subscriptionColumns+`
		FROM user_subscriptions
		WHERE user_id = $1 AND plan_id = $2
	`, userID, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) SaveSubscription(ctx context.Context, s *UserSubscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO user_subscriptions (id, user_id, plan_id, is_active, next_billing_at, last_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, plan_id) DO UPDATE
		SET is_active = EXCLUDED.is_active,
		    next_billing_at = EXCLUDED.next_billing_at,
		    last_transaction_id = EXCLUDED.last_transaction_id,
		    updated_at = NOW()
		RETURNING `+subscriptionColumns,
		s.ID, s.UserID, s.PlanID, s.IsActive, s.NextBillingAt, s.LastTransactionID,
	).StructScan(s)
}

func (r *Repository) Deactivate(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	s := &UserSubscription{}
	err := r.db.GetContext(ctx, s, `
		UPDATE user_subscriptions
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND plan_id = $2
		RETURNING `+subscriptionColumns,
		userID, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]UserSubscription, error) {
	subs := []UserSubscription{}
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+subscriptionColumns+`
		FROM user_subscriptions
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
	`, userID)
	return subs, err
}

func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Due, error) {
	due := []Due{}
	err := r.db.SelectContext(ctx, &due, `
		WITH claimed AS (
			SELECT us.id
			FROM user_subscriptions us
			JOIN plans p ON p.id = us.plan_id
			WHERE us.is_active AND p.is_active AND us.next_billing_at <= $1
			ORDER BY us.next_billing_at
			LIMIT $2
			FOR UPDATE OF us SKIP LOCKED
		)
		UPDATE user_subscriptions us
		SET next_billing_at = us.next_billing_at + make_interval(days => p.frequency_days),
		    updated_at = NOW()
		FROM claimed, plans p
		WHERE us.id = claimed.id AND p.id = us.plan_id
		RETURNING us.id, us.user_id, us.plan_id, p.business_id, p.name, p.price
	`, now, limit)
	return due, err
}

func (r *Repository) SetLastTransaction(ctx context.Context, subscriptionID, txID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_subscriptions
		SET last_transaction_id = $2, updated_at = NOW()
		WHERE id = $1
	`, subscriptionID, txID)
	return err
}
