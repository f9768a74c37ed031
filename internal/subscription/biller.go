package subscription

import (
	"context"
	"fmt"
	"time"

	"myme/internal/logger"
	"myme/internal/metrics"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

const billingBatchSize = 100

// Scheduler creates deferred transfers. transfer.Engine implements it.
type Scheduler interface {
	Schedule(ctx context.Context, req transfer.Request, capability transfer.Capability) (*wallet.Transaction, error)
}

type BatchResult struct {
	Scheduled int
	Rejected  int
}

// Biller collects due subscription payments. Each due subscription becomes
// a deferred transfer; funds are checked when it settles.
type Biller struct {
	store     Store
	ledger    wallet.Store
	scheduler Scheduler
}

func NewBiller(store Store, ledger wallet.Store, scheduler Scheduler) *Biller {
	return &Biller{store: store, ledger: ledger, scheduler: scheduler}
}

// ProcessDue bills every subscription due at now. A subscription's billing
// date is advanced before its transfer is created, so a crash in between
// skips one charge rather than repeating it.
func (b *Biller) ProcessDue(ctx context.Context, now time.Time) (BatchResult, error) {
	var res BatchResult
	for {
		due, err := b.store.ClaimDue(ctx, now, billingBatchSize)
		if err != nil {
			return res, fmt.Errorf("claim due subscriptions: %w", err)
		}
		for _, d := range due {
			if b.charge(ctx, d) {
				res.Scheduled++
			} else {
				res.Rejected++
			}
		}
		if len(due) < billingBatchSize {
			break
		}
	}

	if res.Scheduled+res.Rejected > 0 {
		logger.Info("subscription billing run finished", "scheduled", res.Scheduled, "rejected", res.Rejected)
	}
	return res, nil
}

func (b *Biller) charge(ctx context.Context, d Due) bool {
	from, err := b.ledger.GetOrCreateWallet(ctx, wallet.UserOwner(d.UserID))
	if err != nil {
		logger.Error("subscription billing: user wallet", "subscription_id", d.SubscriptionID, "error", err)
		metrics.RecordBillingItem("subscription", "error")
		return false
	}
	to, err := b.ledger.GetOrCreateWallet(ctx, wallet.BusinessOwner(d.BusinessID))
	if err != nil {
		logger.Error("subscription billing: business wallet", "subscription_id", d.SubscriptionID, "error", err)
		metrics.RecordBillingItem("subscription", "error")
		return false
	}

	t, err := b.scheduler.Schedule(ctx, transfer.Request{
		From:    &from.ID,
		To:      &to.ID,
		Amount:  d.Price,
		Remarks: "Payment for subscription on " + d.PlanName,
		Kind:    transfer.KindSubscription,
	}, transfer.SystemCapability{})
	if err != nil {
		logger.Error("subscription billing rejected",
			"subscription_id", d.SubscriptionID,
			"user_id", d.UserID,
			"amount", d.Price,
			"error", err,
		)
		metrics.RecordBillingItem("subscription", "rejected")
		return false
	}

	if err := b.store.SetLastTransaction(ctx, d.SubscriptionID, t.ID); err != nil {
		logger.Error("failed to record subscription transaction",
			"subscription_id", d.SubscriptionID, "transaction_id", t.ID, "error", err)
	}
	metrics.RecordBillingItem("subscription", "scheduled")
	return true
}
