package enterprise

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/settlement"
	"myme/internal/transfer"
	"myme/internal/wallet"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type sentNote struct {
	userID uuid.UUID
	title  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []sentNote
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, sentNote{userID: userID, title: title})
	return nil
}

type gatewayFixture struct {
	ledger     *wallet.MemoryStore
	dir        *account.MemoryDirectory
	store      *MemoryStore
	notifier   *recordingNotifier
	gateway    *Gateway
	enterprise *Enterprise
	principal  *Principal
	user       account.User
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	ledger := wallet.NewMemoryStore()
	dir := account.NewMemoryDirectory()
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	engine := transfer.NewEngine(ledger, settlement.NewReactor(ledger, dir, nil, "ETB"), nil)
	gw := NewGateway(store, ledger, wallet.NewService(ledger, dir), engine, dir, notifier, "ETB")

	e, err := gw.CreateEnterprise(context.Background(), CreateEnterpriseRequest{LongName: "Addis Fiber Internet", ShortName: "AFI"})
	require.NoError(t, err)

	user := dir.AddUser("Selam", "selam@example.com", "0912345678")
	ledger.Seed(wallet.UserOwner(user.ID), 1000)

	return &gatewayFixture{
		ledger:     ledger,
		dir:        dir,
		store:      store,
		notifier:   notifier,
		gateway:    gw,
		enterprise: e,
		principal:  &Principal{KeyID: uuid.New(), AccessID: "afi", EnterpriseID: &e.ID},
		user:       user,
	}
}

func (f *gatewayFixture) balance(t *testing.T, owner wallet.OwnerRef) int64 {
	w, err := f.ledger.GetWalletByOwner(context.Background(), owner)
	require.NoError(t, err)
	return w.Balance
}

// approvedGrant requests a grant and has the user approve it.
func (f *gatewayFixture) approvedGrant(t *testing.T, maxAmount int64) *UserGrant {
	ctx := context.Background()
	g, err := f.gateway.RequestGrant(ctx, f.principal, GrantRequest{PhoneNumber: "+251912345678", MaxAmount: maxAmount})
	require.NoError(t, err)
	g, err = f.gateway.ApproveGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	return g
}

func TestCreateEnterprise_OpensWallet(t *testing.T) {
	f := newGatewayFixture(t)

	assert.True(t, f.enterprise.IsActive)
	assert.Equal(t, int64(0), f.balance(t, wallet.EnterpriseOwner(f.enterprise.ID)))
}

func TestPushMoney_CreditsUserFromOutside(t *testing.T) {
	f := newGatewayFixture(t)
	before := f.ledger.TotalBalance()

	tr, err := f.gateway.PushMoney(context.Background(), &Principal{AccessID: "bank"}, PushRequest{PhoneNumber: "0912345678", Amount: 250, Remarks: "salary"})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCompleted, tr.Status)
	assert.Nil(t, tr.FromWallet)
	assert.Equal(t, int64(1250), f.balance(t, wallet.UserOwner(f.user.ID)))
	assert.Equal(t, before+250, f.ledger.TotalBalance())
}

func TestPushMoney_UnknownOrRestrictedReceiver(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	p := &Principal{AccessID: "bank"}

	_, err := f.gateway.PushMoney(ctx, p, PushRequest{PhoneNumber: "0999999999", Amount: 10})
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	w, err := f.ledger.GetWalletByOwner(ctx, wallet.UserOwner(f.user.ID))
	require.NoError(t, err)
	_, err = f.ledger.SetRestricted(ctx, w.ID, true)
	require.NoError(t, err)

	_, err = f.gateway.PushMoney(ctx, p, PushRequest{PhoneNumber: "0912345678", Amount: 10})
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestPullMoney_RespectsGrantCeiling(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	g := f.approvedGrant(t, 500)

	_, err := f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: g.ID, Amount: 600})
	assert.ErrorIs(t, err, ErrGrantExceeded)
	assert.Equal(t, int64(1000), f.balance(t, wallet.UserOwner(f.user.ID)))

	tr, err := f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: g.ID, Amount: 500, Remarks: "monthly plan"})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCompleted, tr.Status)
	assert.Equal(t, int64(500), f.balance(t, wallet.UserOwner(f.user.ID)))
	assert.Equal(t, int64(500), f.balance(t, wallet.EnterpriseOwner(f.enterprise.ID)))
}

func TestPullMoney_GrantMustBeUsable(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	pending, err := f.gateway.RequestGrant(ctx, f.principal, GrantRequest{PhoneNumber: "0912345678", MaxAmount: 300})
	require.NoError(t, err)
	_, err = f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: pending.ID, Amount: 100})
	assert.ErrorIs(t, err, ErrGrantNotApproved)

	approved := f.approvedGrant(t, 300)
	_, err = f.gateway.SuspendGrant(ctx, f.user.ID, approved.ID)
	require.NoError(t, err)
	_, err = f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: approved.ID, Amount: 100})
	assert.ErrorIs(t, err, ErrGrantNotApproved)

	expiry := time.Now().Add(time.Hour)
	expiring, err := f.gateway.RequestGrant(ctx, f.principal, GrantRequest{PhoneNumber: "0912345678", MaxAmount: 300, ExpiresAt: &expiry})
	require.NoError(t, err)
	_, err = f.gateway.ApproveGrant(ctx, f.user.ID, expiring.ID)
	require.NoError(t, err)
	f.gateway.now = func() time.Time { return expiry }
	_, err = f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: expiring.ID, Amount: 100})
	assert.ErrorIs(t, err, ErrGrantExpired)

	assert.Equal(t, int64(1000), f.balance(t, wallet.UserOwner(f.user.ID)))
}

// gatedSettler parks every settlement until release is closed.
type gatedSettler struct {
	next    transfer.Settler
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSettler) Settle(ctx context.Context, txID uuid.UUID) (*wallet.Transaction, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.next.Settle(ctx, txID)
}

func TestPullMoney_SuspensionWaitsForInFlightPull(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	g := f.approvedGrant(t, 300)

	gate := &gatedSettler{
		next:    settlement.NewReactor(f.ledger, f.dir, nil, "ETB"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := transfer.NewEngine(f.ledger, gate, nil)
	gw := NewGateway(f.store, f.ledger, wallet.NewService(f.ledger, f.dir), engine, f.dir, nil, "ETB")

	pulled := make(chan error, 1)
	go func() {
		_, err := gw.PullMoney(ctx, f.principal, PullRequest{UserGrant: g.ID, Amount: 200})
		pulled <- err
	}()
	<-gate.entered

	suspended := make(chan error, 1)
	go func() {
		_, err := gw.SuspendGrant(ctx, f.user.ID, g.ID)
		suspended <- err
	}()

	select {
	case <-suspended:
		t.Fatal("suspension went through while a pull held the grant")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-pulled)
	require.NoError(t, <-suspended)
	assert.Equal(t, int64(800), f.balance(t, wallet.UserOwner(f.user.ID)))

	_, err := f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: g.ID, Amount: 50})
	assert.ErrorIs(t, err, ErrGrantNotApproved)
}

func TestPullMoney_OnlyOwningEnterprise(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	g := f.approvedGrant(t, 300)

	_, err := f.gateway.PullMoney(ctx, &Principal{AccessID: "push-only"}, PullRequest{UserGrant: g.ID, Amount: 100})
	assert.ErrorIs(t, err, ErrNotEnterprise)

	other, err := f.gateway.CreateEnterprise(ctx, CreateEnterpriseRequest{LongName: "Other", ShortName: "OTH"})
	require.NoError(t, err)
	_, err = f.gateway.PullMoney(ctx, &Principal{EnterpriseID: &other.ID}, PullRequest{UserGrant: g.ID, Amount: 100})
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestPullMoney_PullLimitAndFunds(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	capped, err := f.gateway.CreateEnterprise(ctx, CreateEnterpriseRequest{LongName: "Capped", ShortName: "CAP", PullLimit: 100})
	require.NoError(t, err)
	p := &Principal{EnterpriseID: &capped.ID}
	g, err := f.gateway.RequestGrant(ctx, p, GrantRequest{PhoneNumber: "0912345678", MaxAmount: 5000})
	require.NoError(t, err)
	_, err = f.gateway.ApproveGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)

	_, err = f.gateway.PullMoney(ctx, p, PullRequest{UserGrant: g.ID, Amount: 150})
	assert.ErrorIs(t, err, ErrPullLimitExceeded)

	big := f.approvedGrant(t, 5000)
	_, err = f.gateway.PullMoney(ctx, f.principal, PullRequest{UserGrant: big.ID, Amount: 2000})
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestGrantTransitions(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	g, err := f.gateway.RequestGrant(ctx, f.principal, GrantRequest{PhoneNumber: "0912345678", MaxAmount: 300})
	require.NoError(t, err)
	assert.Equal(t, GrantPending, g.Status)
	assert.False(t, g.IsActive)
	require.Len(t, f.notifier.notes, 1)
	assert.Equal(t, f.user.ID, f.notifier.notes[0].userID)

	_, err = f.gateway.ApproveGrant(ctx, uuid.New(), g.ID)
	assert.ErrorIs(t, err, ErrGrantNotFound)

	_, err = f.gateway.SuspendGrant(ctx, f.user.ID, g.ID)
	assert.ErrorIs(t, err, ErrInvalidGrantTransition)

	g, err = f.gateway.ApproveGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.True(t, g.IsActive)

	again, err := f.gateway.ApproveGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, GrantApproved, again.Status)

	_, err = f.gateway.RejectGrant(ctx, f.user.ID, g.ID)
	assert.ErrorIs(t, err, ErrInvalidGrantTransition)

	g, err = f.gateway.SuspendGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.False(t, g.IsActive)

	g, err = f.gateway.ApproveGrant(ctx, f.user.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, GrantApproved, g.Status)

	mine, err := f.gateway.ListUserGrants(ctx, f.user.ID, GrantApproved)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestIssueKey_SecretReturnedOnce(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	k, err := f.gateway.IssueKey(ctx, IssueKeyRequest{EnterpriseID: &f.enterprise.ID})
	require.NoError(t, err)
	assert.Len(t, k.AccessID, 32)
	assert.NotEmpty(t, k.AccessSecret)
	assert.NotEqual(t, k.AccessSecret, k.SecretHash)

	stored, err := f.store.GetAccessKey(ctx, k.AccessID)
	require.NoError(t, err)
	assert.NotContains(t, stored.SecretHash, k.AccessSecret)

	missing := uuid.New()
	_, err = f.gateway.IssueKey(ctx, IssueKeyRequest{EnterpriseID: &missing})
	assert.ErrorIs(t, err, ErrEnterpriseNotFound)
}
