package dispute

import (
	"context"

	"github.com/google/uuid"

	"myme/internal/wallet"
)

// Store persists disputes. Transition locks the dispute row inside a ledger
// transaction so a refund and the status change commit together.
type Store interface {
	Create(ctx context.Context, d *Dispute) error
	Get(ctx context.Context, id uuid.UUID) (*Dispute, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Dispute, error)
	IsRefund(ctx context.Context, txID uuid.UUID) (bool, error)

	// Transition loads the dispute under lock and calls fn with it. Changes fn
	// makes to d are saved if fn returns nil.
	Transition(ctx context.Context, id uuid.UUID, fn func(tx wallet.Tx, d *Dispute) error) (*Dispute, error)
}
