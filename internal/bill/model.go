package bill

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUtilityNotFound  = errors.New("utility not found")
	ErrAccountNotFound  = errors.New("utility account not found")
	ErrNumberTaken      = errors.New("account number already registered")
	ErrNoDueBills       = errors.New("no due bills")
	ErrAmountBelowTotal = errors.New("amount is not sufficient to settle all the bills")
)

type Utility struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UtilityAccount is a customer number at a utility. When AutopayWalletID is
// set, due bills are collected from that wallet by the scheduler.
type UtilityAccount struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UtilityID       uuid.UUID  `db:"utility_id" json:"utility_id"`
	Number          string     `db:"number" json:"number"`
	PhoneNumber     string     `db:"phone_number" json:"phone_number"`
	AutopayWalletID *uuid.UUID `db:"autopay_wallet_id" json:"autopay_wallet_id"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

type Bill struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UtilityID     uuid.UUID  `db:"utility_id" json:"utility_id"`
	AccountID     uuid.UUID  `db:"account_id" json:"account_id"`
	UtilityName   string     `db:"utility_name" json:"utility_name"`
	Amount        int64      `db:"amount" json:"amount"`
	DueAt         time.Time  `db:"due_at" json:"due_at"`
	IsPaid        bool       `db:"is_paid" json:"is_paid"`
	TransactionID *uuid.UUID `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

func (b *Bill) Remarks() string {
	return "Bills Payment for " + b.UtilityName + " for " + b.DueAt.Format("2006-01-02")
}

// AutopayBill is a claimed bill together with the wallet that pays it.
type AutopayBill struct {
	Bill
	WalletID uuid.UUID `db:"autopay_wallet_id"`
}

type PayRequest struct {
	Number string `json:"number" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gte=1"`
}

type PayResult struct {
	Paid  []Bill `json:"paid"`
	Total int64  `json:"total"`
}

type AutopayRequest struct {
	WalletID *uuid.UUID `json:"wallet_id"`
}

type CreateUtilityRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type CreateAccountRequest struct {
	Number      string `json:"number" binding:"required,max=64"`
	PhoneNumber string `json:"phone_number"`
}

type IssueBillRequest struct {
	Number string    `json:"number" binding:"required"`
	Amount int64     `json:"amount" binding:"required,gte=1"`
	DueAt  time.Time `json:"due_at" binding:"required"`
}
