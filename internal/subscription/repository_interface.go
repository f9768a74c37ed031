package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListPlans(ctx context.Context, businessID *uuid.UUID) ([]Plan, error)

	GetSubscription(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error)
	// SaveSubscription inserts the subscription or reactivates the user's
	// existing one for the same plan.
	SaveSubscription(ctx context.Context, s *UserSubscription) error
	Deactivate(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]UserSubscription, error)

	// ClaimDue advances the next billing date of up to limit active
	// subscriptions due at now by one period and returns them. Rows another
	// biller holds are skipped.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Due, error)
	SetLastTransaction(ctx context.Context, subscriptionID, txID uuid.UUID) error
}
