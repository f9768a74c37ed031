package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the durable home of wallets and transactions.
type Store interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetWalletByOwner(ctx context.Context, owner OwnerRef) (*Wallet, error)
	GetOrCreateWallet(ctx context.Context, owner OwnerRef) (*Wallet, error)
	SetRestricted(ctx context.Context, id uuid.UUID, restricted bool) (*Wallet, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Transaction, error)
	CreateTransaction(ctx context.Context, t *Transaction) error

	// RunInTx executes fn atomically. Nothing fn did is visible to others
	// unless fn returns nil.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of ledger mutations allowed inside RunInTx.
type Tx interface {
	// LockWalletsForUpdate locks every wallet in ascending id order and
	// returns them in that order. Missing wallets yield ErrWalletNotFound.
	LockWalletsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*Wallet, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// ApplyDelta adds delta to the balance of a locked wallet and returns the
	// new balance. The balance may never drop below the frozen amount.
	ApplyDelta(ctx context.Context, walletID uuid.UUID, delta int64) (int64, error)
	AdjustFrozen(ctx context.Context, walletID uuid.UUID, delta int64) (*Wallet, error)

	InsertTransaction(ctx context.Context, t *Transaction) error
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status Status, reason string) error
}

// SQLTx is implemented by Tx values backed by a Postgres transaction, so that
// other repositories can write their rows in the same unit of work.
type SQLTx interface {
	SQL() *sqlx.Tx
}
