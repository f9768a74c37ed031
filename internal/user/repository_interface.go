package user

import (
	"context"

	"myme/internal/account"
)

type Store interface {
	Exists(ctx context.Context, email, phone string) (bool, error)
	Create(ctx context.Context, c *Credentials) error
	FindByPhone(ctx context.Context, phone string) (*Credentials, error)
	CreateBusiness(ctx context.Context, b *account.Business) error
}
