package bill

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	accountColumns = `id, utility_id, number, phone_number, autopay_wallet_id, created_at`
	billColumns    = `b.id, b.utility_id, b.account_id, u.name AS utility_name, b.amount, b.due_at, b.is_paid, b.transaction_id, b.created_at`
	billReturning  = `id, utility_id, account_id, (SELECT name FROM utilities WHERE id = utility_id) AS utility_name, amount, due_at, is_paid, transaction_id, created_at`
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUtility(ctx context.Context, u *Utility) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.db.GetContext(ctx, u, `
		INSERT INTO utilities (id, name) VALUES ($1, $2)
		RETURNING id, name, created_at
	`, u.ID, u.Name)
}

func (r *Repository) CreateAccount(ctx context.Context, a *UtilityAccount) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.GetContext(ctx, a, `
		INSERT INTO utility_accounts (id, utility_id, number, phone_number)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		a.ID, a.UtilityID, a.Number, a.PhoneNumber)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return ErrUtilityNotFound
		case "23505":
			return ErrNumberTaken
		}
	}
	return err
}

func (r *Repository) FindAccountByNumber(ctx context.Context, number string) (*UtilityAccount, error) {
	a := &UtilityAccount{}
	err := r.db.GetContext(ctx, a, `SELECT `+accountColumns+` FROM utility_accounts WHERE number = $1`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) SetAutopay(ctx context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*UtilityAccount, error) {
	a := &UtilityAccount{}
	err := r.db.GetContext(ctx, a, `
		UPDATE utility_accounts SET autopay_wallet_id = $2
		WHERE id = $1
		RETURNING `+accountColumns,
		accountID, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) CreateBill(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.db.GetContext(ctx, b, `
		INSERT INTO bills (id, utility_id, account_id, amount, due_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+billReturning,
		b.ID, b.UtilityID, b.AccountID, b.Amount, b.DueAt)
}

func (r *Repository) ListDue(ctx context.Context, accountID uuid.UUID, now time.Time) ([]Bill, error) {
	bills := []Bill{}
	err := r.db.SelectContext(ctx, &bills, `
		SELECT `+billColumns+`
		FROM bills b
		JOIN utilities u ON u.id = b.utility_id
		WHERE b.account_id = $1 AND NOT b.is_paid AND b.due_at <= $2
		ORDER BY b.due_at
	`, accountID, now)
	return bills, err
}

func (r *Repository) ClaimBills(ctx context.Context, ids []uuid.UUID) ([]Bill, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	bills := []Bill{}
	err := r.db.SelectContext(ctx, &bills, `
		UPDATE bills SET is_paid = TRUE
		WHERE id = ANY($1::uuid[]) AND NOT is_paid
		RETURNING `+billReturning,
		pq.Array(keys))
	return bills, err
}

func (r *Repository) ClaimAutopay(ctx context.Context, now time.Time, limit int) ([]AutopayBill, error) {
	bills := []AutopayBill{}
	err := r.db.SelectContext(ctx, &bills, `
		WITH claimed AS (
			SELECT b.id, a.autopay_wallet_id
			FROM bills b
			JOIN utility_accounts a ON a.id = b.account_id
			WHERE NOT b.is_paid AND b.due_at <= $1 AND a.autopay_wallet_id IS NOT NULL
			ORDER BY b.due_at
			LIMIT $2
			FOR UPDATE OF b SKIP LOCKED
		)
		UPDATE bills b SET is_paid = TRUE
		FROM claimed, utilities u
		WHERE b.id = claimed.id AND u.id = b.utility_id
		RETURNING `+billColumns+`, claimed.autopay_wallet_id
	`, now, limit)
	return bills, err
}

func (r *Repository) AttachTransaction(ctx context.Context, billID, txID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bills SET transaction_id = $2 WHERE id = $1`, billID, txID)
	return err
}

func (r *Repository) Reopen(ctx context.Context, billID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bills SET is_paid = FALSE, transaction_id = NULL WHERE id = $1`, billID)
	return err
}

func (r *Repository) ReopenFailed(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bills b SET is_paid = FALSE, transaction_id = NULL
		FROM transactions t
		WHERE b.transaction_id = t.id AND b.is_paid AND t.status = 'failed'
	`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
