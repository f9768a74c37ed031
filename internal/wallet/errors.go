package wallet

import "errors"

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be at least 1")
	ErrSameWalletTransfer  = errors.New("cannot transfer to the same wallet")
	ErrWalletRestricted    = errors.New("wallet is restricted")
	ErrInvalidOwner        = errors.New("wallet owner must be exactly one of user, business or enterprise")
	ErrInvalidFreeze       = errors.New("frozen amount must stay between zero and the balance")
)
