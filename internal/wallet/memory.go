package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
// RunInTx serializes all transactions behind one mutex and stages writes
// until fn returns, so a failed unit leaves no trace.
type MemoryStore struct {
	txMu sync.Mutex // held for the duration of RunInTx

	mu           sync.RWMutex
	wallets      map[uuid.UUID]Wallet
	owners       map[OwnerRef]uuid.UUID
	transactions map[uuid.UUID]Transaction
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[uuid.UUID]Wallet),
		owners:       make(map[OwnerRef]uuid.UUID),
		transactions: make(map[uuid.UUID]Transaction),
		now:          time.Now,
	}
}

// SetClock overrides the time source used for timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.now = now
}

// Seed inserts a wallet with the given balance, creating it if needed.
func (m *MemoryStore) Seed(owner OwnerRef, balance int64) *Wallet {
	w, _ := m.GetOrCreateWallet(context.Background(), owner)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.wallets[w.ID]
	stored.Balance = balance
	m.wallets[w.ID] = stored
	return &stored
}

// TotalBalance sums every wallet balance.
func (m *MemoryStore) TotalBalance() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, w := range m.wallets {
		total += w.Balance
	}
	return total
}

func (m *MemoryStore) GetWallet(_ context.Context, id uuid.UUID) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return &w, nil
}

func (m *MemoryStore) GetWalletByOwner(ctx context.Context, owner OwnerRef) (*Wallet, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	m.mu.RLock()
	id, ok := m.owners[owner]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrWalletNotFound
	}
	return m.GetWallet(ctx, id)
}

func (m *MemoryStore) GetOrCreateWallet(_ context.Context, owner OwnerRef) (*Wallet, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.owners[owner]; ok {
		w := m.wallets[id]
		return &w, nil
	}
	now := m.now()
	w := Wallet{
		ID:        uuid.New(),
		OwnerKind: owner.Kind(),
		OwnerID:   owner.ID(),
		Currency:  "ETB",
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.wallets[w.ID] = w
	m.owners[owner] = w.ID
	return &w, nil
}

func (m *MemoryStore) SetRestricted(_ context.Context, id uuid.UUID, restricted bool) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	w.IsRestricted = restricted
	w.UpdatedAt = m.now()
	m.wallets[id] = w
	return &w, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &t, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	var out []Transaction
	for _, t := range m.transactions {
		if (t.FromWallet != nil && *t.FromWallet == walletID) || (t.ToWallet != nil && *t.ToWallet == walletID) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Transaction{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]Transaction, error) {
	m.mu.RLock()
	var out []Transaction
	for _, t := range m.transactions {
		if t.Status == StatusPending && t.CreatedAt.Before(olderThan) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	return m.RunInTx(ctx, func(tx Tx) error {
		return tx.InsertTransaction(ctx, t)
	})
}

func (m *MemoryStore) RunInTx(_ context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{
		store:        m,
		wallets:      make(map[uuid.UUID]Wallet),
		transactions: make(map[uuid.UUID]Transaction),
	}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range tx.wallets {
		m.wallets[id] = w
	}
	for id, t := range tx.transactions {
		m.transactions[id] = t
	}
	return nil
}

type memTx struct {
	store        *MemoryStore
	wallets      map[uuid.UUID]Wallet
	transactions map[uuid.UUID]Transaction
}

func (t *memTx) wallet(id uuid.UUID) (Wallet, bool) {
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	w, ok := t.store.wallets[id]
	return w, ok
}

func (t *memTx) transaction(id uuid.UUID) (Transaction, bool) {
	if tr, ok := t.transactions[id]; ok {
		return tr, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	tr, ok := t.store.transactions[id]
	return tr, ok
}

func (t *memTx) LockWalletsForUpdate(_ context.Context, ids []uuid.UUID) ([]*Wallet, error) {
	ordered := SortedUnique(ids)
	out := make([]*Wallet, 0, len(ordered))
	for _, id := range ordered {
		w, ok := t.wallet(id)
		if !ok {
			return nil, ErrWalletNotFound
		}
		out = append(out, &w)
	}
	return out, nil
}

func (t *memTx) LockTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	tr, ok := t.transaction(id)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tr, nil
}

func (t *memTx) ApplyDelta(_ context.Context, walletID uuid.UUID, delta int64) (int64, error) {
	w, ok := t.wallet(walletID)
	if !ok {
		return 0, ErrWalletNotFound
	}
	if w.Balance+delta < w.FrozenAmount {
		return 0, ErrInsufficientBalance
	}
	w.Balance += delta
	w.UpdatedAt = t.store.now()
	t.wallets[walletID] = w
	return w.Balance, nil
}

func (t *memTx) AdjustFrozen(_ context.Context, walletID uuid.UUID, delta int64) (*Wallet, error) {
	w, ok := t.wallet(walletID)
	if !ok {
		return nil, ErrWalletNotFound
	}
	frozen := w.FrozenAmount + delta
	if frozen < 0 || frozen > w.Balance {
		return nil, ErrInvalidFreeze
	}
	w.FrozenAmount = frozen
	w.UpdatedAt = t.store.now()
	t.wallets[walletID] = w
	return &w, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if tr.Status == "" {
		tr.Status = StatusPending
	}
	now := t.store.now()
	tr.CreatedAt = now
	tr.UpdatedAt = now
	t.transactions[tr.ID] = *tr
	return nil
}

func (t *memTx) SetTransactionStatus(_ context.Context, id uuid.UUID, status Status, reason string) error {
	tr, ok := t.transaction(id)
	if !ok {
		return ErrTransactionNotFound
	}
	tr.Status = status
	tr.FailureReason = reason
	tr.UpdatedAt = t.store.now()
	t.transactions[id] = tr
	return nil
}
