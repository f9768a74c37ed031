package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory for tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]User
	businesses map[uuid.UUID]Business
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:      make(map[uuid.UUID]User),
		businesses: make(map[uuid.UUID]Business),
	}
}

// AddUser registers an active user. The phone number is stored normalized.
func (d *MemoryDirectory) AddUser(name, email, phone string) User {
	normalized, _ := NormalizePhone(phone)
	u := User{
		ID:          uuid.New(),
		Name:        name,
		Email:       email,
		PhoneNumber: normalized,
		Role:        "user",
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
	return u
}

func (d *MemoryDirectory) AddBusiness(ownerID uuid.UUID, name string) Business {
	b := Business{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	d.mu.Lock()
	d.businesses[b.ID] = b
	d.mu.Unlock()
	return b
}

func (d *MemoryDirectory) FindUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) FindUserByPhone(_ context.Context, phone string) (*User, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.PhoneNumber == normalized {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *MemoryDirectory) FindBusinessByID(_ context.Context, id uuid.UUID) (*Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (d *MemoryDirectory) ListBusinessesByOwner(_ context.Context, ownerID uuid.UUID) ([]Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Business{}
	for _, b := range d.businesses {
		if b.OwnerID == ownerID && b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
