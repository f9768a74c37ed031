package wallet

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"myme/internal/db"
)

const (
	walletColumns      = `id, owner_kind, owner_id, balance, frozen_amount, is_restricted, currency, created_at, updated_at`
	transactionColumns = `id, from_wallet_id, to_wallet_id, amount, status, remarks, failure_reason, created_at, updated_at`
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetWallet(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repository) GetWalletByOwner(ctx context.Context, owner OwnerRef) (*Wallet, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	w := &Wallet{}
	err := r.db.GetContext(ctx, w,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_kind = $1 AND owner_id = $2`,
		owner.Kind(), owner.ID(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetOrCreateWallet returns the owner's wallet, creating it on first use.
// The (owner_kind, owner_id) unique key keeps it at one wallet per owner.
func (r *Repository) GetOrCreateWallet(ctx context.Context, owner OwnerRef) (*Wallet, error) {
	w, err := r.GetWalletByOwner(ctx, owner)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w = &Wallet{}
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO wallets (id, owner_kind, owner_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_kind, owner_id) DO NOTHING
		 RETURNING `+walletColumns,
		uuid.New(), owner.Kind(), owner.ID(),
	).StructScan(w)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race against a concurrent insert.
		return r.GetWalletByOwner(ctx, owner)
	}
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (r *Repository) SetRestricted(ctx context.Context, id uuid.UUID, restricted bool) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.QueryRowxContext(ctx,
		`UPDATE wallets
		 SET is_restricted = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+walletColumns,
		id, restricted,
	).StructScan(w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.GetContext(ctx, t, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Transaction, error) {
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	return txs, err
}

func (r *Repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	return insertTransaction(ctx, r.db, t)
}

func (r *Repository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func insertTransaction(ctx context.Context, q sqlx.QueryerContext, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	return sqlx.GetContext(ctx, q, t,
		`INSERT INTO transactions (id, from_wallet_id, to_wallet_id, amount, status, remarks)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+transactionColumns,
		t.ID, t.FromWallet, t.ToWallet, t.Amount, t.Status, t.Remarks,
	)
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) SQL() *sqlx.Tx {
	return t.tx
}

func (t *pgTx) LockWalletsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*Wallet, error) {
	ordered := SortedUnique(ids)
	if len(ordered) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ordered))
	for i, id := range ordered {
		keys[i] = id.String()
	}

	wallets := []*Wallet{}
	err := t.tx.SelectContext(ctx, &wallets,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE id = ANY($1::uuid[])
		 ORDER BY id
		 FOR UPDATE`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, err
	}
	if len(wallets) != len(ordered) {
		return nil, ErrWalletNotFound
	}

	return wallets, nil
}

func (t *pgTx) LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	tr := &Transaction{}
	err := t.tx.GetContext(ctx, tr,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (t *pgTx) ApplyDelta(ctx context.Context, walletID uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := t.tx.GetContext(ctx, &balance,
		`UPDATE wallets
		 SET balance = balance + $2, updated_at = NOW()
		 WHERE id = $1 AND balance + $2 >= frozen_amount
		 RETURNING balance`,
		walletID, delta,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (t *pgTx) AdjustFrozen(ctx context.Context, walletID uuid.UUID, delta int64) (*Wallet, error) {
	w := &Wallet{}
	err := t.tx.QueryRowxContext(ctx,
		`UPDATE wallets
		 SET frozen_amount = frozen_amount + $2, updated_at = NOW()
		 WHERE id = $1 AND frozen_amount + $2 >= 0 AND frozen_amount + $2 <= balance
		 RETURNING `+walletColumns,
		walletID, delta,
	).StructScan(w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidFreeze
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *Transaction) error {
	return insertTransaction(ctx, t.tx, tr)
}

func (t *pgTx) SetTransactionStatus(ctx context.Context, id uuid.UUID, status Status, reason string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transactions
		 SET status = $2, failure_reason = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, status, reason,
	)
	return err
}

// SortedUnique returns ids deduplicated in ascending byte order, the order in
// which every code path acquires wallet locks.
func SortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
