package wallet

import (
	"time"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerUser       OwnerKind = "user"
	OwnerBusiness   OwnerKind = "business"
	OwnerEnterprise OwnerKind = "enterprise"
)

// OwnerRef names the single entity a wallet belongs to. Build one with
// UserOwner, BusinessOwner or EnterpriseOwner.
type OwnerRef struct {
	kind OwnerKind
	id   uuid.UUID
}

func UserOwner(id uuid.UUID) OwnerRef       { return OwnerRef{kind: OwnerUser, id: id} }
func BusinessOwner(id uuid.UUID) OwnerRef   { return OwnerRef{kind: OwnerBusiness, id: id} }
func EnterpriseOwner(id uuid.UUID) OwnerRef { return OwnerRef{kind: OwnerEnterprise, id: id} }

func (o OwnerRef) Kind() OwnerKind { return o.kind }
func (o OwnerRef) ID() uuid.UUID   { return o.id }

func (o OwnerRef) Valid() bool {
	switch o.kind {
	case OwnerUser, OwnerBusiness, OwnerEnterprise:
		return o.id != uuid.Nil
	}
	return false
}

func (o OwnerRef) String() string {
	return string(o.kind) + ":" + o.id.String()
}

type Wallet struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OwnerKind    OwnerKind `db:"owner_kind" json:"wallet_type"`
	OwnerID      uuid.UUID `db:"owner_id" json:"owner_id"`
	Balance      int64     `db:"balance" json:"balance"`
	FrozenAmount int64     `db:"frozen_amount" json:"frozen_amount"`
	IsRestricted bool      `db:"is_restricted" json:"is_restricted"`
	Currency     string    `db:"currency" json:"currency"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (w *Wallet) Owner() OwnerRef {
	return OwnerRef{kind: w.OwnerKind, id: w.OwnerID}
}

// Spendable is the part of the balance not held by a freeze.
func (w *Wallet) Spendable() int64 {
	return w.Balance - w.FrozenAmount
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction moves Amount from FromWallet to ToWallet. A nil FromWallet means
// the money enters from outside the system; a nil ToWallet means it leaves.
type Transaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FromWallet    *uuid.UUID `db:"from_wallet_id" json:"from_wallet"`
	ToWallet      *uuid.UUID `db:"to_wallet_id" json:"to_wallet"`
	Amount        int64      `db:"amount" json:"amount"`
	Status        Status     `db:"status" json:"status"`
	Remarks       string     `db:"remarks" json:"remarks"`
	FailureReason string     `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// WalletIDs returns the non-nil legs of t.
func (t *Transaction) WalletIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if t.FromWallet != nil {
		ids = append(ids, *t.FromWallet)
	}
	if t.ToWallet != nil {
		ids = append(ids, *t.ToWallet)
	}
	return ids
}
