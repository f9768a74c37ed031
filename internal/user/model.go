package user

import (
	"errors"

	"myme/internal/account"
)

var (
	ErrAlreadyRegistered  = errors.New("email or phone number already registered")
	ErrInvalidCredentials = errors.New("invalid phone number or password")
)

// Credentials is a user row together with its password hash.
type Credentials struct {
	account.User
	PasswordHash string `db:"password_hash" json:"-"`
}

type RegisterRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        account.User `json:"user"`
}

type CreateBusinessRequest struct {
	Name         string `json:"name" binding:"required,max=255"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
}
