package enterprise

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps enterprises, keys and grants in process. Used by tests.
type MemoryStore struct {
	mu          sync.Mutex
	grantLock   sync.Mutex
	enterprises map[uuid.UUID]Enterprise
	keys        map[string]AccessKey
	grants      map[uuid.UUID]UserGrant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		enterprises: make(map[uuid.UUID]Enterprise),
		keys:        make(map[string]AccessKey),
		grants:      make(map[uuid.UUID]UserGrant),
	}
}

func (m *MemoryStore) CreateEnterprise(_ context.Context, e *Enterprise) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	m.mu.Lock()
	m.enterprises[e.ID] = *e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetEnterprise(_ context.Context, id uuid.UUID) (*Enterprise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enterprises[id]
	if !ok {
		return nil, ErrEnterpriseNotFound
	}
	return &e, nil
}

func (m *MemoryStore) CreateAccessKey(_ context.Context, k *AccessKey) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	k.CreatedAt = time.Now()
	m.mu.Lock()
	m.keys[k.AccessID] = *k
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetAccessKey(_ context.Context, accessID string) (*AccessKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[accessID]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &k, nil
}

func (m *MemoryStore) CreateGrant(_ context.Context, g *UserGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if len(g.Metadata) == 0 {
		g.Metadata = []byte("{}")
	}
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	m.mu.Lock()
	m.grants[g.ID] = *g
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetGrant(_ context.Context, id uuid.UUID) (*UserGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return &g, nil
}

func (m *MemoryStore) ListGrantsByEnterprise(_ context.Context, enterpriseID uuid.UUID, status GrantStatus, userID *uuid.UUID) ([]UserGrant, error) {
	return m.filter(func(g UserGrant) bool {
		return g.EnterpriseID == enterpriseID &&
			(status == "" || g.Status == status) &&
			(userID == nil || g.UserID == *userID)
	}), nil
}

func (m *MemoryStore) ListGrantsByUser(_ context.Context, userID uuid.UUID, status GrantStatus) ([]UserGrant, error) {
	return m.filter(func(g UserGrant) bool {
		return g.UserID == userID && (status == "" || g.Status == status)
	}), nil
}

func (m *MemoryStore) filter(keep func(UserGrant) bool) []UserGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []UserGrant{}
	for _, g := range m.grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// WithGrantLocked serialises fn with every other grant lock holder and with
// TransitionGrant.
func (m *MemoryStore) WithGrantLocked(ctx context.Context, id uuid.UUID, fn func(g *UserGrant) error) error {
	m.grantLock.Lock()
	defer m.grantLock.Unlock()
	g, err := m.GetGrant(ctx, id)
	if err != nil {
		return err
	}
	return fn(g)
}

func (m *MemoryStore) TransitionGrant(_ context.Context, id, userID uuid.UUID, from []GrantStatus, to GrantStatus, active bool) (*UserGrant, error) {
	m.grantLock.Lock()
	defer m.grantLock.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok || g.UserID != userID {
		return nil, ErrGrantNotFound
	}
	if !slices.Contains(from, g.Status) {
		return nil, ErrInvalidGrantTransition
	}
	g.Status = to
	g.IsActive = active
	g.UpdatedAt = time.Now()
	m.grants[id] = g
	return &g, nil
}
