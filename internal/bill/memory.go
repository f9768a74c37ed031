package bill

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"myme/internal/wallet"
)

// MemoryStore is the in-process Store used by tests. It reads transaction
// outcomes from ledger.
type MemoryStore struct {
	mu        sync.Mutex
	ledger    wallet.Store
	utilities map[uuid.UUID]Utility
	accounts  map[uuid.UUID]UtilityAccount
	bills     map[uuid.UUID]Bill
}

func NewMemoryStore(ledger wallet.Store) *MemoryStore {
	return &MemoryStore{
		ledger:    ledger,
		utilities: make(map[uuid.UUID]Utility),
		accounts:  make(map[uuid.UUID]UtilityAccount),
		bills:     make(map[uuid.UUID]Bill),
	}
}

func (m *MemoryStore) CreateUtility(_ context.Context, u *Utility) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	m.mu.Lock()
	m.utilities[u.ID] = *u
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, a *UtilityAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.utilities[a.UtilityID]; !ok {
		return ErrUtilityNotFound
	}
	for _, existing := range m.accounts {
		if existing.Number == a.Number {
			return ErrNumberTaken
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	m.accounts[a.ID] = *a
	return nil
}

func (m *MemoryStore) FindAccountByNumber(_ context.Context, number string) (*UtilityAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Number == number {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *MemoryStore) SetAutopay(_ context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*UtilityAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a.AutopayWalletID = walletID
	m.accounts[accountID] = a
	return &a, nil
}

func (m *MemoryStore) CreateBill(_ context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.UtilityName = m.utilities[b.UtilityID].Name
	b.CreatedAt = time.Now()
	m.bills[b.ID] = *b
	return nil
}

func (m *MemoryStore) ListDue(_ context.Context, accountID uuid.UUID, now time.Time) ([]Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Bill{}
	for _, b := range m.bills {
		if b.AccountID == accountID && !b.IsPaid && !b.DueAt.After(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *MemoryStore) ClaimBills(_ context.Context, ids []uuid.UUID) ([]Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Bill{}
	for _, id := range ids {
		b, ok := m.bills[id]
		if !ok || b.IsPaid {
			continue
		}
		b.IsPaid = true
		m.bills[id] = b
		out = append(out, b)
	}
	return out, nil
}

func (m *MemoryStore) ClaimAutopay(_ context.Context, now time.Time, limit int) ([]AutopayBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []AutopayBill
	for _, b := range m.bills {
		a := m.accounts[b.AccountID]
		if !b.IsPaid && !b.DueAt.After(now) && a.AutopayWalletID != nil {
			due = append(due, AutopayBill{Bill: b, WalletID: *a.AutopayWalletID})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].IsPaid = true
		m.bills[due[i].ID] = due[i].Bill
	}
	return due, nil
}

func (m *MemoryStore) AttachTransaction(_ context.Context, billID, txID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bills[billID]
	b.TransactionID = &txID
	m.bills[billID] = b
	return nil
}

func (m *MemoryStore) Reopen(_ context.Context, billID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bills[billID]
	b.IsPaid = false
	b.TransactionID = nil
	m.bills[billID] = b
	return nil
}

func (m *MemoryStore) ReopenFailed(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reopened := 0
	for id, b := range m.bills {
		if !b.IsPaid || b.TransactionID == nil {
			continue
		}
		t, err := m.ledger.GetTransaction(ctx, *b.TransactionID)
		if err != nil {
			return reopened, err
		}
		if t.Status == wallet.StatusFailed {
			b.IsPaid = false
			b.TransactionID = nil
			m.bills[id] = b
			reopened++
		}
	}
	return reopened, nil
}

// Bill returns a stored bill.
func (m *MemoryStore) Bill(id uuid.UUID) (Bill, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	return b, ok
}

