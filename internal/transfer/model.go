package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"myme/internal/wallet"
)

var ErrNotPermitted = errors.New("caller may not move money out of this wallet")

// Kinds label transfers in logs and metrics.
const (
	KindP2P          = "p2p"
	KindPush         = "push"
	KindPull         = "pull"
	KindBill         = "bill"
	KindSubscription = "subscription"
	KindRefund       = "refund"
)

// Request describes one money movement. A nil From is money entering the
// system; a nil To is money leaving it.
type Request struct {
	From    *uuid.UUID
	To      *uuid.UUID
	Amount  int64
	Remarks string
	Kind    string

	// Deferred transfers skip the funds check at creation. They are settled
	// later and fail at settlement if the money is not there.
	Deferred bool
}

// Capability decides whether the caller may debit a wallet. from is nil when
// the transfer has no source wallet.
type Capability interface {
	MayDebit(ctx context.Context, from *wallet.Wallet) error
}

// Controller answers wallet ownership questions. wallet.Service implements it.
type Controller interface {
	Controls(ctx context.Context, userID uuid.UUID, w *wallet.Wallet) (bool, error)
}

// OwnerCapability lets a signed-in user spend from wallets they own.
type OwnerCapability struct {
	UserID  uuid.UUID
	Wallets Controller
}

func (c OwnerCapability) MayDebit(ctx context.Context, from *wallet.Wallet) error {
	if from == nil {
		return ErrNotPermitted
	}
	ok, err := c.Wallets.Controls(ctx, c.UserID, from)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotPermitted
	}
	return nil
}

// SystemCapability is held by back-office flows: batch billing, bill pay and
// external pushes that were authenticated upstream.
type SystemCapability struct{}

func (SystemCapability) MayDebit(context.Context, *wallet.Wallet) error {
	return nil
}

// GrantCapability allows debiting exactly the wallet an approved grant
// covers.
type GrantCapability struct {
	WalletID uuid.UUID
}

func (c GrantCapability) MayDebit(_ context.Context, from *wallet.Wallet) error {
	if from == nil || from.ID != c.WalletID {
		return ErrNotPermitted
	}
	return nil
}
