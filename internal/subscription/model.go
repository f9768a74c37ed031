package subscription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("already subscribed to this plan")
	ErrNotBusinessOwner     = errors.New("only the business owner can manage its plans")
)

// Plan is a recurring charge a business offers. Price is in minor units and
// is collected every FrequencyDays.
type Plan struct {
	ID            uuid.UUID `db:"id" json:"id"`
	BusinessID    uuid.UUID `db:"business_id" json:"business_id"`
	Name          string    `db:"name" json:"name"`
	FrequencyDays int       `db:"frequency_days" json:"frequency_days"`
	Price         int64     `db:"price" json:"price"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func (p *Plan) Period() time.Duration {
	return time.Duration(p.FrequencyDays) * 24 * time.Hour
}

type UserSubscription struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UserID            uuid.UUID  `db:"user_id" json:"user_id"`
	PlanID            uuid.UUID  `db:"plan_id" json:"plan_id"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	NextBillingAt     time.Time  `db:"next_billing_at" json:"next_billing_at"`
	LastTransactionID *uuid.UUID `db:"last_transaction_id" json:"last_transaction_id"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Due is a subscription claimed for billing, with what the charge needs.
type Due struct {
	SubscriptionID uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	PlanID         uuid.UUID `db:"plan_id"`
	BusinessID     uuid.UUID `db:"business_id"`
	PlanName       string    `db:"name"`
	Price          int64     `db:"price"`
}

type CreatePlanRequest struct {
	BusinessID    uuid.UUID `json:"business_id" binding:"required"`
	Name          string    `json:"name" binding:"required,max=255"`
	FrequencyDays int       `json:"frequency_days" binding:"required,gte=1,lte=366"`
	Price         int64     `json:"price" binding:"required,gte=1"`
}

type SubscribeRequest struct {
	PlanID uuid.UUID `json:"plan_id" binding:"required"`
}
