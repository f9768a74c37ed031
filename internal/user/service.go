package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/auth"
	"myme/internal/logger"
)

type Service struct {
	store     Store
	dir       account.Directory
	jwtSecret string
}

func NewService(store Store, dir account.Directory, jwtSecret string) *Service {
	return &Service{store: store, dir: dir, jwtSecret: jwtSecret}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	phone, err := account.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, req.Email, phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	c := &Credentials{
		User: account.User{
			Name:        req.Name,
			Email:       req.Email,
			PhoneNumber: phone,
			Role:        auth.RoleUser,
			IsActive:    true,
		},
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	logger.Info("user registered", "user_id", c.ID)
	return s.issue(c.User)
}

// Login checks a phone number and password. Unknown numbers, inactive users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	phone, err := account.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	c, err := s.store.FindByPhone(ctx, phone)
	if errors.Is(err, account.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !c.IsActive || !auth.CheckSecret(c.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(c.User)
}

func (s *Service) issue(u account.User) (*LoginResponse, error) {
	token, err := auth.GenerateAccessToken(u.ID, u.Role, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResponse{AccessToken: token, User: u}, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*account.User, error) {
	return s.dir.FindUserByID(ctx, userID)
}

func (s *Service) CreateBusiness(ctx context.Context, ownerID uuid.UUID, req CreateBusinessRequest) (*account.Business, error) {
	b := &account.Business{OwnerID: ownerID, Name: req.Name, ContactEmail: req.ContactEmail}
	if err := s.store.CreateBusiness(ctx, b); err != nil {
		return nil, fmt.Errorf("create business: %w", err)
	}
	logger.Info("business registered", "business_id", b.ID, "owner_id", ownerID)
	return b, nil
}

func (s *Service) Businesses(ctx context.Context, ownerID uuid.UUID) ([]account.Business, error) {
	return s.dir.ListBusinessesByOwner(ctx, ownerID)
}
