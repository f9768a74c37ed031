package bill

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	CreateUtility(ctx context.Context, u *Utility) error
	CreateAccount(ctx context.Context, a *UtilityAccount) error
	FindAccountByNumber(ctx context.Context, number string) (*UtilityAccount, error)
	SetAutopay(ctx context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*UtilityAccount, error)

	CreateBill(ctx context.Context, b *Bill) error
	ListDue(ctx context.Context, accountID uuid.UUID, now time.Time) ([]Bill, error)

	// ClaimBills marks the listed bills paid and returns those that were
	// still unpaid. A claimed bill must get a transaction or be reopened.
	ClaimBills(ctx context.Context, ids []uuid.UUID) ([]Bill, error)
	// ClaimAutopay claims up to limit due bills of autopay accounts, skipping
	// rows another worker holds.
	ClaimAutopay(ctx context.Context, now time.Time, limit int) ([]AutopayBill, error)
	AttachTransaction(ctx context.Context, billID, txID uuid.UUID) error
	Reopen(ctx context.Context, billID uuid.UUID) error
	// ReopenFailed reopens paid bills whose transaction failed to settle.
	ReopenFailed(ctx context.Context) (int, error)
}
