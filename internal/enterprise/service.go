package enterprise

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"myme/internal/account"
	"myme/internal/auth"
	"myme/internal/logger"
	"myme/internal/notification"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

// secretBytes of entropy back every issued access secret.
const secretBytes = 32

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string) error
}

// Gateway serves machine callers: pushes into user wallets, pulls against
// user grants, and the grant and key bookkeeping around them.
type Gateway struct {
	store    Store
	wallets  *wallet.Service
	ledger   wallet.Store
	engine   *transfer.Engine
	dir      account.Directory
	notifier Notifier
	currency string
	now      func() time.Time
}

func NewGateway(store Store, ledger wallet.Store, wallets *wallet.Service, engine *transfer.Engine, dir account.Directory, notifier Notifier, currency string) *Gateway {
	return &Gateway{
		store:    store,
		wallets:  wallets,
		ledger:   ledger,
		engine:   engine,
		dir:      dir,
		notifier: notifier,
		currency: currency,
		now:      time.Now,
	}
}

// PushMoney credits the personal wallet of the user with the given phone
// number from outside the system.
func (g *Gateway) PushMoney(ctx context.Context, p *Principal, req PushRequest) (*wallet.Transaction, error) {
	to, _, err := g.wallets.LookupByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	t, err := g.engine.Transfer(ctx, transfer.Request{
		To:      &to.ID,
		Amount:  req.Amount,
		Remarks: req.Remarks,
		Kind:    transfer.KindPush,
	}, transfer.SystemCapability{})
	if err != nil {
		return t, err
	}

	logger.Info("external push settled", "access_id", p.AccessID, "transaction_id", t.ID, "amount", t.Amount)
	return t, nil
}

// PullMoney moves money from a user's wallet into the calling enterprise's
// wallet. The grant must belong to the caller, be approved, active and
// unexpired, and amount may not exceed its ceiling.
func (g *Gateway) PullMoney(ctx context.Context, p *Principal, req PullRequest) (*wallet.Transaction, error) {
	if p.EnterpriseID == nil {
		return nil, ErrNotEnterprise
	}

	var t *wallet.Transaction
	err := g.store.WithGrantLocked(ctx, req.UserGrant, func(grant *UserGrant) error {
		var err error
		t, err = g.pullUnderGrant(ctx, p, grant, req)
		return err
	})
	return t, err
}

// pullUnderGrant runs with the grant row locked, so the checks below hold
// until the transfer has settled.
func (g *Gateway) pullUnderGrant(ctx context.Context, p *Principal, grant *UserGrant, req PullRequest) (*wallet.Transaction, error) {
	if grant.EnterpriseID != *p.EnterpriseID {
		return nil, ErrGrantNotFound
	}
	if err := grant.Usable(g.now()); err != nil {
		return nil, err
	}
	if req.Amount > grant.MaxAmount {
		return nil, ErrGrantExceeded
	}

	e, err := g.store.GetEnterprise(ctx, grant.EnterpriseID)
	if err != nil {
		return nil, err
	}
	if e.PullLimit > 0 && req.Amount > e.PullLimit {
		return nil, ErrPullLimitExceeded
	}

	from, err := g.ledger.GetOrCreateWallet(ctx, wallet.UserOwner(grant.UserID))
	if err != nil {
		return nil, fmt.Errorf("user wallet: %w", err)
	}
	to, err := g.ledger.GetOrCreateWallet(ctx, wallet.EnterpriseOwner(e.ID))
	if err != nil {
		return nil, fmt.Errorf("enterprise wallet: %w", err)
	}

	t, err := g.engine.Transfer(ctx, transfer.Request{
		From:    &from.ID,
		To:      &to.ID,
		Amount:  req.Amount,
		Remarks: req.Remarks,
		Kind:    transfer.KindPull,
	}, transfer.GrantCapability{WalletID: from.ID})
	if err != nil {
		return t, err
	}

	logger.Info("external pull settled",
		"access_id", p.AccessID,
		"grant_id", grant.ID,
		"transaction_id", t.ID,
		"amount", t.Amount,
	)
	return t, nil
}

// RequestGrant asks a user to let the calling enterprise pull from their
// wallet. The grant starts pending and inactive until the user approves it.
func (g *Gateway) RequestGrant(ctx context.Context, p *Principal, req GrantRequest) (*UserGrant, error) {
	if p.EnterpriseID == nil {
		return nil, ErrNotEnterprise
	}
	e, err := g.store.GetEnterprise(ctx, *p.EnterpriseID)
	if err != nil {
		return nil, err
	}
	u, err := g.dir.FindUserByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	grant := &UserGrant{
		UserID:       u.ID,
		EnterpriseID: e.ID,
		MaxAmount:    req.MaxAmount,
		ExpiresAt:    req.ExpiresAt,
		Status:       GrantPending,
		Metadata:     req.Metadata,
	}
	if err := g.store.CreateGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("create grant: %w", err)
	}

	logger.Info("user grant requested", "grant_id", grant.ID, "enterprise_id", e.ID, "user_id", u.ID)
	if g.notifier != nil {
		body := fmt.Sprintf("%s asks to collect up to %s per payment from your wallet.",
			e.ShortName, notification.Money(grant.MaxAmount, g.currency))
		if err := g.notifier.Notify(ctx, u.ID, "Payment access request", body); err != nil {
			logger.Error("failed to send grant request notification", "grant_id", grant.ID, "error", err)
		}
	}
	return grant, nil
}

func (g *Gateway) ListEnterpriseGrants(ctx context.Context, p *Principal, status GrantStatus, userID *uuid.UUID) ([]UserGrant, error) {
	if p.EnterpriseID == nil {
		return nil, ErrNotEnterprise
	}
	return g.store.ListGrantsByEnterprise(ctx, *p.EnterpriseID, status, userID)
}

func (g *Gateway) ListUserGrants(ctx context.Context, userID uuid.UUID, status GrantStatus) ([]UserGrant, error) {
	return g.store.ListGrantsByUser(ctx, userID, status)
}

func (g *Gateway) ApproveGrant(ctx context.Context, userID, grantID uuid.UUID) (*UserGrant, error) {
	return g.moveGrant(ctx, userID, grantID, GrantApproved, true, GrantPending, GrantSuspended)
}

func (g *Gateway) RejectGrant(ctx context.Context, userID, grantID uuid.UUID) (*UserGrant, error) {
	return g.moveGrant(ctx, userID, grantID, GrantRejected, false, GrantPending)
}

func (g *Gateway) SuspendGrant(ctx context.Context, userID, grantID uuid.UUID) (*UserGrant, error) {
	return g.moveGrant(ctx, userID, grantID, GrantSuspended, false, GrantApproved)
}

func (g *Gateway) moveGrant(ctx context.Context, userID, grantID uuid.UUID, to GrantStatus, active bool, from ...GrantStatus) (*UserGrant, error) {
	current, err := g.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrGrantNotFound
	}
	if current.Status == to {
		return current, nil
	}

	updated, err := g.store.TransitionGrant(ctx, grantID, userID, from, to, active)
	if err != nil {
		return nil, err
	}
	logger.Info("user grant status changed", "grant_id", grantID, "from", current.Status, "to", to)
	return updated, nil
}

// CreateEnterprise registers an enterprise and opens its wallet.
func (g *Gateway) CreateEnterprise(ctx context.Context, req CreateEnterpriseRequest) (*Enterprise, error) {
	e := &Enterprise{
		LongName:    req.LongName,
		ShortName:   req.ShortName,
		Description: req.Description,
		IsActive:    true,
		PullLimit:   req.PullLimit,
	}
	if err := g.store.CreateEnterprise(ctx, e); err != nil {
		return nil, fmt.Errorf("create enterprise: %w", err)
	}
	if _, err := g.ledger.GetOrCreateWallet(ctx, wallet.EnterpriseOwner(e.ID)); err != nil {
		return nil, fmt.Errorf("enterprise wallet: %w", err)
	}

	logger.Info("enterprise created", "enterprise_id", e.ID, "short_name", e.ShortName)
	return e, nil
}

// IssueKey creates an access key. The plaintext secret is only ever part of
// the returned value.
func (g *Gateway) IssueKey(ctx context.Context, req IssueKeyRequest) (*IssuedKey, error) {
	if req.EnterpriseID != nil {
		if _, err := g.store.GetEnterprise(ctx, *req.EnterpriseID); err != nil {
			return nil, err
		}
	}

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("hash access secret: %w", err)
	}

	key := &AccessKey{
		AccessID:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		SecretHash:   hash,
		EnterpriseID: req.EnterpriseID,
		IsActive:     true,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := g.store.CreateAccessKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create access key: %w", err)
	}

	logger.Info("access key issued", "access_id", key.AccessID, "enterprise_id", key.EnterpriseID)
	return &IssuedKey{AccessKey: *key, AccessSecret: secret}, nil
}

func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
