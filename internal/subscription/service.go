package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

type Service struct {
	store   Store
	ledger  wallet.Store
	wallets *wallet.Service
	engine  *transfer.Engine
	dir     account.Directory
	now     func() time.Time
}

func NewService(store Store, ledger wallet.Store, wallets *wallet.Service, engine *transfer.Engine, dir account.Directory) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		wallets: wallets,
		engine:  engine,
		dir:     dir,
		now:     time.Now,
	}
}

// CreatePlan adds a plan to a business the caller owns.
func (s *Service) CreatePlan(ctx context.Context, userID uuid.UUID, req CreatePlanRequest) (*Plan, error) {
	b, err := s.dir.FindBusinessByID(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != userID || !b.IsActive {
		return nil, ErrNotBusinessOwner
	}

	p := &Plan{
		BusinessID:    b.ID,
		Name:          req.Name,
		FrequencyDays: req.FrequencyDays,
		Price:         req.Price,
		IsActive:      true,
	}
	if err := s.store.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	logger.Info("subscription plan created", "plan_id", p.ID, "business_id", b.ID, "price", p.Price)
	return p, nil
}

func (s *Service) ListPlans(ctx context.Context, businessID *uuid.UUID) ([]Plan, error) {
	return s.store.ListPlans(ctx, businessID)
}

func (s *Service) ListMy(ctx context.Context, userID uuid.UUID) ([]UserSubscription, error) {
	return s.store.ListActiveByUser(ctx, userID)
}

// Subscribe charges the first period right away and schedules the next one.
// Nothing is recorded if the first charge fails.
func (s *Service) Subscribe(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPlanNotFound
	}

	existing, err := s.store.GetSubscription(ctx, userID, planID)
	switch {
	case err == nil && existing.IsActive:
		return nil, ErrAlreadySubscribed
	case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	}

	from, err := s.ledger.GetOrCreateWallet(ctx, wallet.UserOwner(userID))
	if err != nil {
		return nil, fmt.Errorf("user wallet: %w", err)
	}
	to, err := s.ledger.GetOrCreateWallet(ctx, wallet.BusinessOwner(p.BusinessID))
	if err != nil {
		return nil, fmt.Errorf("business wallet: %w", err)
	}

	t, err := s.engine.Transfer(ctx, transfer.Request{
		From:    &from.ID,
		To:      &to.ID,
		Amount:  p.Price,
		Remarks: "Payment for subscription on " + p.Name,
		Kind:    transfer.KindSubscription,
	}, transfer.OwnerCapability{UserID: userID, Wallets: s.wallets})
	if err != nil {
		return nil, err
	}

	sub := &UserSubscription{
		UserID:            userID,
		PlanID:            p.ID,
		IsActive:          true,
		NextBillingAt:     s.now().Add(p.Period()),
		LastTransactionID: &t.ID,
	}
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		// The first period is paid but the subscription row is missing.
		logger.Error("ALERT subscription charged but not saved",
			"user_id", userID, "plan_id", p.ID, "transaction_id", t.ID, "error", err)
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	logger.Info("user subscribed", "user_id", userID, "plan_id", p.ID, "next_billing_at", sub.NextBillingAt)
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	sub, err := s.store.Deactivate(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	logger.Info("user unsubscribed", "user_id", userID, "plan_id", planID)
	return sub, nil
}
