package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"myme/internal/logger"
	"myme/internal/metrics"
	"myme/internal/wallet"
)

// Settler applies a pending transaction's balance effects.
type Settler interface {
	Settle(ctx context.Context, txID uuid.UUID) (*wallet.Transaction, error)
}

// Enqueuer hands a pending transaction to the asynchronous settlement worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, txID uuid.UUID) error
}

type Engine struct {
	store   wallet.Store
	settler Settler
	queue   Enqueuer
}

func NewEngine(store wallet.Store, settler Settler, queue Enqueuer) *Engine {
	return &Engine{store: store, settler: settler, queue: queue}
}

// CreateTransfer validates req and records it as a pending transaction. The
// first failing rule wins: amount, distinct wallets, source wallet state and
// funds, then the caller's capability.
func (e *Engine) CreateTransfer(ctx context.Context, req Request, capability Capability) (*wallet.Transaction, error) {
	if err := e.validate(ctx, req, capability); err != nil {
		metrics.RecordTransferRejected(rejectReason(err))
		return nil, err
	}

	t := &wallet.Transaction{
		FromWallet: req.From,
		ToWallet:   req.To,
		Amount:     req.Amount,
		Status:     wallet.StatusPending,
		Remarks:    req.Remarks,
	}
	if err := e.store.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	metrics.RecordTransferCreated(kindOf(req))
	logger.Info("transfer created",
		"transaction_id", t.ID,
		"kind", kindOf(req),
		"amount", t.Amount,
		"deferred", req.Deferred,
	)
	return t, nil
}

func (e *Engine) validate(ctx context.Context, req Request, capability Capability) error {
	if req.Amount < 1 {
		return wallet.ErrInvalidAmount
	}
	if req.From != nil && req.To != nil && *req.From == *req.To {
		return wallet.ErrSameWalletTransfer
	}

	var from *wallet.Wallet
	if req.From != nil {
		w, err := e.store.GetWallet(ctx, *req.From)
		if err != nil {
			return err
		}
		if w.IsRestricted {
			return wallet.ErrWalletRestricted
		}
		if !req.Deferred && w.Spendable() < req.Amount {
			return wallet.ErrInsufficientBalance
		}
		from = w
	}
	if req.To != nil {
		if _, err := e.store.GetWallet(ctx, *req.To); err != nil {
			return err
		}
	}

	if capability == nil {
		return ErrNotPermitted
	}
	return capability.MayDebit(ctx, from)
}

// Transfer creates the transaction and settles it before returning. When
// settlement fails for lack of funds the failed transaction is returned along
// with wallet.ErrInsufficientBalance.
func (e *Engine) Transfer(ctx context.Context, req Request, capability Capability) (*wallet.Transaction, error) {
	req.Deferred = false
	t, err := e.CreateTransfer(ctx, req, capability)
	if err != nil {
		return nil, err
	}

	settled, err := e.settler.Settle(ctx, t.ID)
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		return settled, err
	}
	if err != nil {
		logger.Error("synchronous settlement failed", "transaction_id", t.ID, "error", err)
		return t, fmt.Errorf("settle %s: %w", t.ID, err)
	}
	return settled, nil
}

// Schedule creates a deferred transaction and queues it for the settlement
// worker. A queueing failure is logged only: the transaction stays pending
// and the sweeper picks it up.
func (e *Engine) Schedule(ctx context.Context, req Request, capability Capability) (*wallet.Transaction, error) {
	req.Deferred = true
	t, err := e.CreateTransfer(ctx, req, capability)
	if err != nil {
		return nil, err
	}

	if err := e.queue.Enqueue(ctx, t.ID); err != nil {
		logger.Error("failed to enqueue transaction for settlement", "transaction_id", t.ID, "error", err)
	}
	return t, nil
}

func kindOf(req Request) string {
	if req.Kind == "" {
		return KindP2P
	}
	return req.Kind
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, wallet.ErrSameWalletTransfer):
		return "same_wallet"
	case errors.Is(err, wallet.ErrWalletNotFound):
		return "wallet_not_found"
	case errors.Is(err, wallet.ErrWalletRestricted):
		return "restricted"
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotPermitted):
		return "not_permitted"
	default:
		return "error"
	}
}
