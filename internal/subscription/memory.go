package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type subKey struct {
	user uuid.UUID
	plan uuid.UUID
}

// MemoryStore is the in-process Store used by tests.
type MemoryStore struct {
	mu    sync.Mutex
	plans map[uuid.UUID]Plan
	subs  map[subKey]UserSubscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[uuid.UUID]Plan),
		subs:  make(map[subKey]UserSubscription),
	}
}

func (m *MemoryStore) CreatePlan(_ context.Context, p *Plan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.mu.Lock()
	m.plans[p.ID] = *p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetPlan(_ context.Context, id uuid.UUID) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListPlans(_ context.Context, businessID *uuid.UUID) ([]Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Plan{}
	for _, p := range m.plans {
		if p.IsActive && (businessID == nil || p.BusinessID == *businessID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subKey{userID, planID}]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) SaveSubscription(_ context.Context, s *UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{s.UserID, s.PlanID}
	now := time.Now()
	if existing, ok := m.subs[key]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.subs[key] = *s
	return nil
}

func (m *MemoryStore) Deactivate(_ context.Context, userID, planID uuid.UUID) (*UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{userID, planID}
	s, ok := m.subs[key]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	s.IsActive = false
	s.UpdatedAt = time.Now()
	m.subs[key] = s
	return &s, nil
}

func (m *MemoryStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []UserSubscription{}
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]Due, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []subKey
	for k, s := range m.subs {
		p := m.plans[s.PlanID]
		if s.IsActive && p.IsActive && !s.NextBillingAt.After(now) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.subs[keys[i]].NextBillingAt.Before(m.subs[keys[j]].NextBillingAt)
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}

	due := make([]Due, 0, len(keys))
	for _, k := range keys {
		s := m.subs[k]
		p := m.plans[s.PlanID]
		s.NextBillingAt = s.NextBillingAt.Add(p.Period())
		m.subs[k] = s
		due = append(due, Due{
			SubscriptionID: s.ID,
			UserID:         s.UserID,
			PlanID:         p.ID,
			BusinessID:     p.BusinessID,
			PlanName:       p.Name,
			Price:          p.Price,
		})
	}
	return due, nil
}

func (m *MemoryStore) SetLastTransaction(_ context.Context, subscriptionID, txID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.subs {
		if s.ID == subscriptionID {
			s.LastTransactionID = &txID
			m.subs[k] = s
			return nil
		}
	}
	return ErrSubscriptionNotFound
}
