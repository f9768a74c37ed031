package enterprise

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

var (
	ErrInvalidCredentials     = errors.New("invalid access credentials")
	ErrNotEnterprise          = errors.New("access key is not bound to an enterprise")
	ErrEnterpriseNotFound     = errors.New("enterprise not found")
	ErrGrantNotFound          = errors.New("user grant not found")
	ErrGrantNotApproved       = errors.New("user grant is not approved and active")
	ErrGrantExpired           = errors.New("user grant has expired")
	ErrGrantExceeded          = errors.New("amount exceeds the grant ceiling")
	ErrPullLimitExceeded      = errors.New("amount exceeds the enterprise pull limit")
	ErrInvalidGrantTransition = errors.New("invalid grant status transition")
)

type Enterprise struct {
	ID          uuid.UUID `db:"id" json:"id"`
	LongName    string    `db:"long_name" json:"long_name"`
	ShortName   string    `db:"short_name" json:"short_name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	PullLimit   int64     `db:"pull_limit" json:"pull_limit"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AccessKey is a credential pair for machine callers. Only the bcrypt hash
// of the secret is kept. Keys without an enterprise may push but not pull.
type AccessKey struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AccessID     string     `db:"access_id" json:"access_id"`
	SecretHash   string     `db:"secret_hash" json:"-"`
	EnterpriseID *uuid.UUID `db:"enterprise_id" json:"enterprise_id"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IssuedKey is the one response that carries the plaintext secret.
type IssuedKey struct {
	AccessKey
	AccessSecret string `json:"access_secret"`
}

type GrantStatus string

const (
	GrantPending   GrantStatus = "pending"
	GrantApproved  GrantStatus = "approved"
	GrantRejected  GrantStatus = "rejected"
	GrantSuspended GrantStatus = "suspended"
)

func (s GrantStatus) Valid() bool {
	switch s {
	case GrantPending, GrantApproved, GrantRejected, GrantSuspended:
		return true
	}
	return false
}

// UserGrant lets one enterprise pull up to MaxAmount per transfer from a
// user's wallet while it is approved, active and unexpired.
type UserGrant struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	UserID       uuid.UUID      `db:"user_id" json:"user"`
	EnterpriseID uuid.UUID      `db:"enterprise_id" json:"enterprise"`
	MaxAmount    int64          `db:"max_amount" json:"max_amount"`
	ExpiresAt    *time.Time     `db:"expires_at" json:"expires_at"`
	Status       GrantStatus    `db:"grant_status" json:"grant_status"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	Metadata     types.JSONText `db:"metadata" json:"meta_data"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Usable reports why the grant cannot back a pull at now, or nil.
func (g *UserGrant) Usable(now time.Time) error {
	if g.Status != GrantApproved || !g.IsActive {
		return ErrGrantNotApproved
	}
	if g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return ErrGrantExpired
	}
	return nil
}

// Principal is the authenticated machine caller of one request.
type Principal struct {
	KeyID        uuid.UUID
	AccessID     string
	EnterpriseID *uuid.UUID
}

type CreateEnterpriseRequest struct {
	LongName    string `json:"long_name" binding:"required,max=255"`
	ShortName   string `json:"short_name" binding:"required,max=255"`
	Description string `json:"description"`
	PullLimit   int64  `json:"pull_limit" binding:"gte=0"`
}

type IssueKeyRequest struct {
	EnterpriseID *uuid.UUID `json:"enterprise_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type PushRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gte=1"`
	Remarks     string `json:"remarks" binding:"max=255"`
}

type PullRequest struct {
	UserGrant uuid.UUID `json:"user_grant" binding:"required"`
	Amount    int64     `json:"amount" binding:"required,gte=1"`
	Remarks   string    `json:"remarks" binding:"max=255"`
}

type GrantRequest struct {
	PhoneNumber string         `json:"phone_number" binding:"required"`
	MaxAmount   int64          `json:"max_amount" binding:"required,gte=1"`
	ExpiresAt   *time.Time     `json:"expires_at"`
	Metadata    types.JSONText `json:"meta_data"`
}
