package bill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/metrics"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

const autopayBatchSize = 100

type Service struct {
	store   Store
	ledger  wallet.Store
	wallets *wallet.Service
	engine  *transfer.Engine
	now     func() time.Time
}

func NewService(store Store, ledger wallet.Store, wallets *wallet.Service, engine *transfer.Engine) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		wallets: wallets,
		engine:  engine,
		now:     time.Now,
	}
}

func (s *Service) CreateUtility(ctx context.Context, req CreateUtilityRequest) (*Utility, error) {
	u := &Utility{Name: req.Name}
	if err := s.store.CreateUtility(ctx, u); err != nil {
		return nil, fmt.Errorf("create utility: %w", err)
	}
	return u, nil
}

func (s *Service) CreateAccount(ctx context.Context, utilityID uuid.UUID, req CreateAccountRequest) (*UtilityAccount, error) {
	phone := ""
	if req.PhoneNumber != "" {
		normalized, err := account.NormalizePhone(req.PhoneNumber)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}

	a := &UtilityAccount{UtilityID: utilityID, Number: req.Number, PhoneNumber: phone}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) IssueBill(ctx context.Context, req IssueBillRequest) (*Bill, error) {
	a, err := s.store.FindAccountByNumber(ctx, req.Number)
	if err != nil {
		return nil, err
	}
	b := &Bill{UtilityID: a.UtilityID, AccountID: a.ID, Amount: req.Amount, DueAt: req.DueAt}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	return b, nil
}

func (s *Service) ListDue(ctx context.Context, number string) ([]Bill, error) {
	a, err := s.store.FindAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.store.ListDue(ctx, a.ID, s.now())
}

// Pay settles every due bill of the account from the caller's personal
// wallet. amount must cover the total and be spendable; only the bill
// amounts are charged.
func (s *Service) Pay(ctx context.Context, userID uuid.UUID, req PayRequest) (*PayResult, error) {
	a, err := s.store.FindAccountByNumber(ctx, req.Number)
	if err != nil {
		return nil, err
	}
	due, err := s.store.ListDue(ctx, a.ID, s.now())
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, ErrNoDueBills
	}

	from, err := s.ledger.GetOrCreateWallet(ctx, wallet.UserOwner(userID))
	if err != nil {
		return nil, fmt.Errorf("user wallet: %w", err)
	}
	if from.Spendable() < req.Amount {
		return nil, wallet.ErrInsufficientBalance
	}

	var total int64
	ids := make([]uuid.UUID, len(due))
	for i, b := range due {
		total += b.Amount
		ids[i] = b.ID
	}
	if req.Amount < total {
		return nil, ErrAmountBelowTotal
	}

	claimed, err := s.store.ClaimBills(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("claim bills: %w", err)
	}

	res := &PayResult{Paid: []Bill{}}
	capability := transfer.OwnerCapability{UserID: userID, Wallets: s.wallets}
	for i, b := range claimed {
		t, err := s.engine.Transfer(ctx, transfer.Request{
			From:    &from.ID,
			Amount:  b.Amount,
			Remarks: b.Remarks(),
			Kind:    transfer.KindBill,
		}, capability)
		if err != nil {
			s.reopen(ctx, claimed[i:])
			metrics.RecordBillingItem("bill", "rejected")
			return res, err
		}
		if err := s.store.AttachTransaction(ctx, b.ID, t.ID); err != nil {
			logger.Error("failed to link bill to transaction", "bill_id", b.ID, "transaction_id", t.ID, "error", err)
		}

		b.IsPaid = true
		b.TransactionID = &t.ID
		res.Paid = append(res.Paid, b)
		res.Total += b.Amount
		metrics.RecordBillingItem("bill", "paid")
	}

	logger.Info("bills paid", "user_id", userID, "number", req.Number, "bills", len(res.Paid), "total", res.Total)
	return res, nil
}

// SetAutopay points the account's automatic payments at a wallet the caller
// controls, or turns them off when walletID is nil.
func (s *Service) SetAutopay(ctx context.Context, userID uuid.UUID, number string, walletID *uuid.UUID) (*UtilityAccount, error) {
	a, err := s.store.FindAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if walletID != nil {
		w, err := s.wallets.GetWallet(ctx, *walletID)
		if err != nil {
			return nil, err
		}
		ok, err := s.wallets.Controls(ctx, userID, w)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, transfer.ErrNotPermitted
		}
	}

	updated, err := s.store.SetAutopay(ctx, a.ID, walletID)
	if err != nil {
		return nil, err
	}
	logger.Info("bill autopay changed", "account_id", a.ID, "wallet_id", walletID)
	return updated, nil
}

type AutopayResult struct {
	Scheduled int
	Rejected  int
	Reopened  int
}

// ProcessAutopay first reopens bills whose deferred payment failed, then
// schedules a deferred payment for every due bill of an autopay account.
// Reopened bills are picked up again in the same run. Bills rejected in this
// run stay claimed until claiming is done, so each bill is tried at most once
// per run.
func (s *Service) ProcessAutopay(ctx context.Context, now time.Time) (AutopayResult, error) {
	var res AutopayResult
	var rejected []Bill
	defer func() { s.reopen(context.WithoutCancel(ctx), rejected) }()

	reopened, err := s.store.ReopenFailed(ctx)
	if err != nil {
		return res, fmt.Errorf("reopen failed bills: %w", err)
	}
	res.Reopened = reopened

	for {
		claimed, err := s.store.ClaimAutopay(ctx, now, autopayBatchSize)
		if err != nil {
			return res, fmt.Errorf("claim autopay bills: %w", err)
		}
		for _, b := range claimed {
			if s.scheduleAutopay(ctx, b) {
				res.Scheduled++
			} else {
				res.Rejected++
				rejected = append(rejected, b.Bill)
			}
		}
		if len(claimed) < autopayBatchSize {
			break
		}
	}

	if res.Scheduled+res.Rejected+res.Reopened > 0 {
		logger.Info("bill autopay run finished",
			"scheduled", res.Scheduled,
			"rejected", res.Rejected,
			"reopened", res.Reopened,
		)
	}
	return res, nil
}

func (s *Service) scheduleAutopay(ctx context.Context, b AutopayBill) bool {
	walletID := b.WalletID
	t, err := s.engine.Schedule(ctx, transfer.Request{
		From:    &walletID,
		Amount:  b.Amount,
		Remarks: b.Remarks(),
		Kind:    transfer.KindBill,
	}, transfer.SystemCapability{})
	if err != nil {
		logger.Error("bill autopay rejected", "bill_id", b.ID, "wallet_id", walletID, "error", err)
		metrics.RecordBillingItem("autopay", "rejected")
		return false
	}

	if err := s.store.AttachTransaction(ctx, b.ID, t.ID); err != nil {
		logger.Error("failed to link bill to transaction", "bill_id", b.ID, "transaction_id", t.ID, "error", err)
	}
	metrics.RecordBillingItem("autopay", "scheduled")
	return true
}

func (s *Service) reopen(ctx context.Context, bills []Bill) {
	for _, b := range bills {
		if err := s.store.Reopen(ctx, b.ID); err != nil {
			logger.Error("ALERT bill left claimed without payment", "bill_id", b.ID, "error", err)
		}
	}
}
