package dispute

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"myme/internal/wallet"
)

const disputeColumns = `id, transaction_id, phone_number, amount, status, notes, refund_transaction_id, resolved_at, created_at, updated_at`

const codeUniqueViolation = "23505"

type Repository struct {
	db     *sqlx.DB
	ledger wallet.Store
}

// NewRepository needs the Postgres-backed ledger so that transitions share
// its transaction.
func NewRepository(db *sqlx.DB, ledger wallet.Store) *Repository {
	return &Repository{db: db, ledger: ledger}
}

func (r *Repository) Create(ctx context.Context, d *Dispute) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.db.GetContext(ctx, d, `
		INSERT INTO disputes (id, transaction_id, phone_number, amount, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+disputeColumns,
		d.ID, d.TransactionID, d.PhoneNumber, d.Amount, d.Status, d.Notes,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return ErrAlreadyDisputed
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	d := &Dispute{}
	err := r.db.GetContext(ctx, d, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repository) List(ctx context.Context, status Status, limit, offset int) ([]Dispute, error) {
	disputes := []Dispute{}
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT `+disputeColumns+`
		FROM disputes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	return disputes, err
}

func (r *Repository) IsRefund(ctx context.Context, txID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM disputes WHERE refund_transaction_id = $1)`, txID)
	return exists, err
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, fn func(tx wallet.Tx, d *Dispute) error) (*Dispute, error) {
	var result *Dispute
	err := r.ledger.RunInTx(ctx, func(tx wallet.Tx) error {
		sqlTx, ok := tx.(wallet.SQLTx)
		if !ok {
			return fmt.Errorf("dispute transition needs a SQL ledger transaction, got %T", tx)
		}

		d := &Dispute{}
		err := sqlTx.SQL().GetContext(ctx, d,
			`SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDisputeNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(tx, d); err != nil {
			return err
		}

		err = sqlTx.SQL().GetContext(ctx, d, `
			UPDATE disputes
			SET status = $2, notes = $3, refund_transaction_id = $4, resolved_at = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING `+disputeColumns,
			d.ID, d.Status, d.Notes, d.RefundTransactionID, d.ResolvedAt,
		)
		if err != nil {
			return err
		}
		result = d
		return nil
	})
	return result, err
}
