package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/metrics"
	"myme/internal/notification"
	"myme/internal/wallet"
)

// Notifier delivers best-effort messages to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string) error
}

type Service struct {
	store    Store
	ledger   wallet.Store
	dir      account.Directory
	notifier Notifier
	currency string
	now      func() time.Time
}

func NewService(store Store, ledger wallet.Store, dir account.Directory, notifier Notifier, currency string) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		dir:      dir,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

// Create opens a dispute on a completed transaction. A missing or zero
// amount means the whole transaction amount.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Dispute, error) {
	t, err := s.ledger.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if t.Status != wallet.StatusCompleted {
		return nil, ErrNotDisputable
	}
	refund, err := s.store.IsRefund(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if refund {
		return nil, ErrNotDisputable
	}

	amount := t.Amount
	if req.Amount != nil && *req.Amount != 0 {
		amount = *req.Amount
	}
	if amount < 0 || amount > t.Amount {
		return nil, ErrInvalidAmount
	}

	phone := ""
	if req.PhoneNumber != "" {
		phone, err = account.NormalizePhone(req.PhoneNumber)
		if err != nil {
			return nil, err
		}
	}

	d := &Dispute{
		TransactionID: t.ID,
		PhoneNumber:   phone,
		Amount:        amount,
		Status:        StatusNeedsResponse,
		Notes:         req.Notes,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("dispute opened", "dispute_id", d.ID, "transaction_id", t.ID, "amount", amount)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, status, limit, offset)
}

func (s *Service) MoveToReview(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return s.transition(ctx, id, StatusInReview, nil)
}

func (s *Service) MarkReviewed(ctx context.Context, id uuid.UUID, notes string) (*Dispute, error) {
	return s.transition(ctx, id, StatusReviewed, func(_ wallet.Tx, d *Dispute) error {
		d.Notes = notes
		return nil
	})
}

// ProcessRefund resolves a reviewed dispute by returning the original amount
// from the receiver to the sender. The refund settles immediately.
func (s *Service) ProcessRefund(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	var refund *wallet.Transaction
	d, err := s.transition(ctx, id, StatusResolved, func(tx wallet.Tx, d *Dispute) error {
		r, err := s.refund(ctx, tx, d)
		if err != nil {
			return err
		}
		refund = r
		now := s.now()
		d.RefundTransactionID = &r.ID
		d.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refund != nil {
		logger.Info("dispute refunded", "dispute_id", d.ID, "refund_transaction_id", refund.ID, "amount", refund.Amount)
		metrics.RecordSettlement(string(wallet.StatusCompleted), refund.Amount)
		s.notifyRefund(ctx, refund)
	}
	return d, nil
}

// transition moves d one step forward. Asking for the status d already has
// returns it unchanged, so retried requests are safe.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, apply func(tx wallet.Tx, d *Dispute) error) (*Dispute, error) {
	var changed bool
	d, err := s.store.Transition(ctx, id, func(tx wallet.Tx, d *Dispute) error {
		changed = false
		if d.Status == to {
			return nil
		}
		if next[d.Status] != to {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, d.Status, to)
		}
		if apply != nil {
			if err := apply(tx, d); err != nil {
				return err
			}
		}
		d.Status = to
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.RecordDisputeTransition(string(to))
		logger.Info("dispute status changed", "dispute_id", id, "status", to)
	}
	return d, nil
}

func (s *Service) refund(ctx context.Context, tx wallet.Tx, d *Dispute) (*wallet.Transaction, error) {
	orig, err := tx.LockTransaction(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.LockWalletsForUpdate(ctx, orig.WalletIDs()); err != nil {
		return nil, err
	}

	r := &wallet.Transaction{
		FromWallet: orig.ToWallet,
		ToWallet:   orig.FromWallet,
		Amount:     orig.Amount,
		Status:     wallet.StatusCompleted,
		Remarks:    fmt.Sprintf("Refund for dispute %s", d.ID),
	}
	if r.FromWallet != nil {
		if _, err := tx.ApplyDelta(ctx, *r.FromWallet, -r.Amount); err != nil {
			return nil, fmt.Errorf("debit original receiver: %w", err)
		}
	}
	if r.ToWallet != nil {
		if _, err := tx.ApplyDelta(ctx, *r.ToWallet, r.Amount); err != nil {
			return nil, fmt.Errorf("credit original sender: %w", err)
		}
	}
	if err := tx.InsertTransaction(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) notifyRefund(ctx context.Context, r *wallet.Transaction) {
	if s.notifier == nil || r.ToWallet == nil {
		return
	}
	w, err := s.ledger.GetWallet(ctx, *r.ToWallet)
	if err != nil {
		logger.Error("failed to load refunded wallet", "wallet_id", *r.ToWallet, "error", err)
		return
	}
	userID, ok, err := wallet.RecipientFor(ctx, s.dir, w.Owner())
	if err != nil || !ok {
		if err != nil {
			logger.Error("failed to resolve refund recipient", "wallet_id", w.ID, "error", err)
		}
		return
	}
	body := fmt.Sprintf("Your dispute was resolved and %s was refunded. Reference %s.",
		notification.Money(r.Amount, s.currency), r.ID)
	if err := s.notifier.Notify(ctx, userID, "Refund issued", body); err != nil {
		logger.Error("failed to send refund notification", "user_id", userID, "error", err)
	}
}
