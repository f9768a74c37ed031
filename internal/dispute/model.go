package dispute

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNeedsResponse Status = "needs_response"
	StatusInReview      Status = "in_review"
	StatusReviewed      Status = "reviewed"
	StatusResolved      Status = "resolved"
)

// next is the only state each status may move to.
var next = map[Status]Status{
	StatusNeedsResponse: StatusInReview,
	StatusInReview:      StatusReviewed,
	StatusReviewed:      StatusResolved,
}

func (s Status) Valid() bool {
	switch s {
	case StatusNeedsResponse, StatusInReview, StatusReviewed, StatusResolved:
		return true
	}
	return false
}

var (
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrInvalidTransition = errors.New("dispute cannot move to that status from its current one")
	ErrNotDisputable     = errors.New("only completed transactions can be disputed")
	ErrAlreadyDisputed   = errors.New("transaction already has a dispute")
	ErrInvalidAmount     = errors.New("dispute amount must be between zero and the transaction amount")
)

type Dispute struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	TransactionID       uuid.UUID  `db:"transaction_id" json:"transaction"`
	PhoneNumber         string     `db:"phone_number" json:"phone_number"`
	Amount              int64      `db:"amount" json:"amount"`
	Status              Status     `db:"status" json:"status"`
	Notes               string     `db:"notes" json:"notes"`
	RefundTransactionID *uuid.UUID `db:"refund_transaction_id" json:"refund_transaction"`
	ResolvedAt          *time.Time `db:"resolved_at" json:"resolved_at"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	TransactionID uuid.UUID `json:"transaction" binding:"required"`
	PhoneNumber   string    `json:"phone_number"`
	Amount        *int64    `json:"amount" binding:"omitempty,gte=0"`
	Notes         string    `json:"notes" binding:"max=2000"`
}

type ReviewRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}
