package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/logger"
)

type Service struct {
	store Store
	dir   account.Directory
}

func NewService(store Store, dir account.Directory) *Service {
	return &Service{store: store, dir: dir}
}

// OwnersOf lists every owner a user acts for: the user and the active
// businesses they own.
func OwnersOf(ctx context.Context, dir account.Directory, userID uuid.UUID) ([]OwnerRef, error) {
	owners := []OwnerRef{UserOwner(userID)}
	businesses, err := dir.ListBusinessesByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	for _, b := range businesses {
		owners = append(owners, BusinessOwner(b.ID))
	}
	return owners, nil
}

// RecipientFor resolves the person to notify about activity on an owner's
// wallet. Enterprise wallets have no recipient.
func RecipientFor(ctx context.Context, dir account.Directory, owner OwnerRef) (uuid.UUID, bool, error) {
	switch owner.Kind() {
	case OwnerUser:
		return owner.ID(), true, nil
	case OwnerBusiness:
		b, err := dir.FindBusinessByID(ctx, owner.ID())
		if err != nil {
			return uuid.Nil, false, err
		}
		return b.OwnerID, true, nil
	default:
		return uuid.Nil, false, nil
	}
}

// MyWallets returns the caller's personal wallet followed by the wallets of
// their businesses, creating any that do not exist yet.
func (s *Service) MyWallets(ctx context.Context, userID uuid.UUID) ([]*Wallet, error) {
	owners, err := OwnersOf(ctx, s.dir, userID)
	if err != nil {
		return nil, err
	}

	wallets := make([]*Wallet, 0, len(owners))
	for _, o := range owners {
		w, err := s.store.GetOrCreateWallet(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("wallet for %s: %w", o, err)
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Controls reports whether userID owns w directly or through a business.
func (s *Service) Controls(ctx context.Context, userID uuid.UUID, w *Wallet) (bool, error) {
	switch w.OwnerKind {
	case OwnerUser:
		return w.OwnerID == userID, nil
	case OwnerBusiness:
		b, err := s.dir.FindBusinessByID(ctx, w.OwnerID)
		if errors.Is(err, account.ErrBusinessNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return b.OwnerID == userID && b.IsActive, nil
	default:
		return false, nil
	}
}

func (s *Service) GetWallet(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, walletID, limit, offset)
}

// InvolvesUser reports whether either leg of t belongs to a wallet userID
// controls.
func (s *Service) InvolvesUser(ctx context.Context, userID uuid.UUID, t *Transaction) (bool, error) {
	for _, id := range t.WalletIDs() {
		w, err := s.store.GetWallet(ctx, id)
		if err != nil {
			return false, err
		}
		ok, err := s.Controls(ctx, userID, w)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// LookupByPhone finds the personal wallet of the user with the given phone
// number. Restricted wallets are reported as not found.
func (s *Service) LookupByPhone(ctx context.Context, phone string) (*Wallet, *account.User, error) {
	u, err := s.dir.FindUserByPhone(ctx, phone)
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, account.ErrUserNotFound
	}

	w, err := s.store.GetOrCreateWallet(ctx, UserOwner(u.ID))
	if err != nil {
		return nil, nil, err
	}
	if w.IsRestricted {
		return nil, nil, ErrWalletNotFound
	}
	return w, u, nil
}

func (s *Service) SetRestricted(ctx context.Context, id uuid.UUID, restricted bool) (*Wallet, error) {
	w, err := s.store.SetRestricted(ctx, id, restricted)
	if err != nil {
		return nil, err
	}
	logger.Info("wallet restriction changed", "wallet_id", id, "restricted", restricted)
	return w, nil
}

// Freeze reserves amount of the wallet's balance so that transfers cannot
// spend it.
func (s *Service) Freeze(ctx context.Context, id uuid.UUID, amount int64) (*Wallet, error) {
	return s.adjustFrozen(ctx, id, amount)
}

// Unfreeze releases a previous reservation.
func (s *Service) Unfreeze(ctx context.Context, id uuid.UUID, amount int64) (*Wallet, error) {
	return s.adjustFrozen(ctx, id, -amount)
}

func (s *Service) adjustFrozen(ctx context.Context, id uuid.UUID, delta int64) (*Wallet, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	var updated *Wallet
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.LockWalletsForUpdate(ctx, []uuid.UUID{id}); err != nil {
			return err
		}
		w, err := tx.AdjustFrozen(ctx, id, delta)
		if err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("wallet frozen amount adjusted", "wallet_id", id, "delta", delta, "frozen_amount", updated.FrozenAmount)
	return updated, nil
}
