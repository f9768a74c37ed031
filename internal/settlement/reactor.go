package settlement

import (
	"context"
	"errors"
	"fmt"

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

// Reactor applies pending transactions to wallet balances. Every settlement
// path in the system goes through Settle.
type Reactor struct {
	store    wallet.Store
	dir      account.Directory
	notifier Notifier
	currency string
}

func NewReactor(store wallet.Store, dir account.Directory, notifier Notifier, currency string) *Reactor {
	return &Reactor{
		store:    store,
		dir:      dir,
		notifier: notifier,
		currency: currency,
	}
}

type outcome struct {
	tx      *wallet.Transaction
	wallets map[uuid.UUID]*wallet.Wallet
	changed bool
}

// Settle debits the sender, credits the receiver and marks the transaction
// completed, all in one unit. A transaction that is no longer pending is
// returned untouched. When the sender cannot cover the amount the transaction
// is marked failed and wallet.ErrInsufficientBalance is returned with it.
func (r *Reactor) Settle(ctx context.Context, txID uuid.UUID) (*wallet.Transaction, error) {
	var out outcome
	var cause error

	err := r.store.RunInTx(ctx, func(tx wallet.Tx) error {
		out = outcome{}
		cause = nil

		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		out.tx = t
		if t.Status != wallet.StatusPending {
			return nil
		}

		locked, err := tx.LockWalletsForUpdate(ctx, t.WalletIDs())
		if err != nil {
			return err
		}
		out.wallets = make(map[uuid.UUID]*wallet.Wallet, len(locked))
		for _, w := range locked {
			out.wallets[w.ID] = w
		}

		if t.FromWallet != nil {
			from := out.wallets[*t.FromWallet]
			if from.IsRestricted {
				cause = wallet.ErrWalletRestricted
			} else if _, err := tx.ApplyDelta(ctx, from.ID, -t.Amount); errors.Is(err, wallet.ErrInsufficientBalance) {
				cause = wallet.ErrInsufficientBalance
			} else if err != nil {
				return err
			}
			if cause != nil {
				t.Status = wallet.StatusFailed
				t.FailureReason = cause.Error()
				out.changed = true
				return tx.SetTransactionStatus(ctx, t.ID, t.Status, t.FailureReason)
			}
		}

		if t.ToWallet != nil {
			if _, err := tx.ApplyDelta(ctx, *t.ToWallet, t.Amount); err != nil {
				return err
			}
		}

		t.Status = wallet.StatusCompleted
		out.changed = true
		return tx.SetTransactionStatus(ctx, t.ID, t.Status, "")
	})
	if err != nil {
		metrics.RecordSettlement("error", 0)
		return nil, fmt.Errorf("settle %s: %w", txID, err)
	}

	if !out.changed {
		logger.Debug("settlement skipped, transaction already final", "transaction_id", txID, "status", out.tx.Status)
		return out.tx, nil
	}

	metrics.RecordSettlement(string(out.tx.Status), out.tx.Amount)
	if out.tx.Status == wallet.StatusFailed {
		logger.Warn("settlement failed", "transaction_id", txID, "reason", out.tx.FailureReason)
		r.notifyFailed(ctx, out)
		if errors.Is(cause, wallet.ErrWalletRestricted) {
			return out.tx, wallet.ErrWalletRestricted
		}
		return out.tx, wallet.ErrInsufficientBalance
	}

	logger.Info("transaction settled", "transaction_id", txID, "amount", out.tx.Amount)
	r.notifyCompleted(ctx, out)
	return out.tx, nil
}

// Fail moves a pending transaction to failed. Final transactions are left
// alone and returned as they are.
func (r *Reactor) Fail(ctx context.Context, txID uuid.UUID, reason string) (*wallet.Transaction, error) {
	var result *wallet.Transaction
	var changed bool
	err := r.store.RunInTx(ctx, func(tx wallet.Tx) error {
		changed = false
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		result = t
		if t.Status != wallet.StatusPending {
			return nil
		}
		t.Status = wallet.StatusFailed
		t.FailureReason = reason
		changed = true
		return tx.SetTransactionStatus(ctx, t.ID, t.Status, reason)
	})
	if err != nil {
		return nil, fmt.Errorf("fail %s: %w", txID, err)
	}
	if changed {
		metrics.RecordSettlement("failed", 0)
		logger.Warn("transaction marked failed", "transaction_id", txID, "reason", reason)
	}
	return result, nil
}

func (r *Reactor) notifyCompleted(ctx context.Context, out outcome) {
	t := out.tx
	amount := notification.Money(t.Amount, r.currency)
	if t.FromWallet != nil {
		r.notifyOwner(ctx, out.wallets[*t.FromWallet], "Money sent",
			fmt.Sprintf("%s was sent from your wallet. Reference %s.", amount, t.ID))
	}
	if t.ToWallet != nil {
		r.notifyOwner(ctx, out.wallets[*t.ToWallet], "Money received",
			fmt.Sprintf("You received %s. Reference %s.", amount, t.ID))
	}
}

func (r *Reactor) notifyFailed(ctx context.Context, out outcome) {
	t := out.tx
	if t.FromWallet == nil {
		return
	}
	r.notifyOwner(ctx, out.wallets[*t.FromWallet], "Payment failed",
		fmt.Sprintf("A payment of %s could not be completed: %s. Reference %s.",
			notification.Money(t.Amount, r.currency), t.FailureReason, t.ID))
}

// notifyOwner runs after commit and never returns an error: a lost message
// must not undo a settlement.
func (r *Reactor) notifyOwner(ctx context.Context, w *wallet.Wallet, title, body string) {
	if w == nil || r.notifier == nil {
		return
	}
	userID, ok, err := wallet.RecipientFor(ctx, r.dir, w.Owner())
	if err != nil {
		logger.Error("failed to resolve notification recipient", "wallet_id", w.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := r.notifier.Notify(ctx, userID, title, body); err != nil {
		logger.Error("failed to send settlement notification", "wallet_id", w.ID, "user_id", userID, "error", err)
	}
}
