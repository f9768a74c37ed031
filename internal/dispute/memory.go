package dispute

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"myme/internal/wallet"
)

// MemoryStore keeps disputes in process and runs transitions inside the
// in-memory ledger's transactions.
type MemoryStore struct {
	mu       sync.Mutex
	ledger   wallet.Store
	disputes map[uuid.UUID]Dispute
}

func NewMemoryStore(ledger wallet.Store) *MemoryStore {
	return &MemoryStore{ledger: ledger, disputes: make(map[uuid.UUID]Dispute)}
}

func (m *MemoryStore) Create(_ context.Context, d *Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.disputes {
		if existing.TransactionID == d.TransactionID {
			return ErrAlreadyDisputed
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	m.disputes[d.ID] = *d
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, ErrDisputeNotFound
	}
	return &d, nil
}

func (m *MemoryStore) List(_ context.Context, status Status, limit, offset int) ([]Dispute, error) {
	m.mu.Lock()
	out := []Dispute{}
	for _, d := range m.disputes {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Dispute{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) IsRefund(_ context.Context, txID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.RefundTransactionID != nil && *d.RefundTransactionID == txID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Transition(ctx context.Context, id uuid.UUID, fn func(tx wallet.Tx, d *Dispute) error) (*Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.disputes[id]
	if !ok {
		return nil, ErrDisputeNotFound
	}

	staged := current
	err := m.ledger.RunInTx(ctx, func(tx wallet.Tx) error {
		staged = current
		return fn(tx, &staged)
	})
	if err != nil {
		return nil, err
	}

	staged.UpdatedAt = time.Now()
	m.disputes[id] = staged
	return &staged, nil
}
