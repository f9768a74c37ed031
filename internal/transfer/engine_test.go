package transfer

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/settlement"
	"myme/internal/wallet"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type recordingQueue struct {
	ids []uuid.UUID
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return q.err
}

type engineFixture struct {
	store  *wallet.MemoryStore
	dir    *account.MemoryDirectory
	queue  *recordingQueue
	engine *Engine
}

func newEngineFixture() *engineFixture {
	store := wallet.NewMemoryStore()
	dir := account.NewMemoryDirectory()
	queue := &recordingQueue{}
	reactor := settlement.NewReactor(store, dir, nil, "ETB")
	return &engineFixture{
		store:  store,
		dir:    dir,
		queue:  queue,
		engine: NewEngine(store, reactor, queue),
	}
}

func (f *engineFixture) balance(t *testing.T, id uuid.UUID) int64 {
	w, err := f.store.GetWallet(context.Background(), id)
	require.NoError(t, err)
	return w.Balance
}

func TestTransfer_Scenario(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 500)

	tr, err := f.engine.Transfer(context.Background(), Request{From: &a.ID, To: &b.ID, Amount: 100}, SystemCapability{})
	require.NoError(t, err)

	assert.Equal(t, wallet.StatusCompleted, tr.Status)
	assert.Equal(t, int64(900), f.balance(t, a.ID))
	assert.Equal(t, int64(600), f.balance(t, b.ID))
}

func TestCreateTransfer_ValidationOrder(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 0)
	restricted := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	_, err := f.store.SetRestricted(context.Background(), restricted.ID, true)
	require.NoError(t, err)
	missing := uuid.New()
	deny := GrantCapability{WalletID: uuid.New()}

	tests := []struct {
		name string
		req  Request
		cap  Capability
		want error
	}{
		{"zero amount beats same wallet", Request{From: &a.ID, To: &a.ID, Amount: 0}, deny, wallet.ErrInvalidAmount},
		{"same wallet beats funds", Request{From: &a.ID, To: &a.ID, Amount: 5000}, deny, wallet.ErrSameWalletTransfer},
		{"unknown sender", Request{From: &missing, To: &b.ID, Amount: 10}, deny, wallet.ErrWalletNotFound},
		{"restricted sender", Request{From: &restricted.ID, To: &b.ID, Amount: 10}, SystemCapability{}, wallet.ErrWalletRestricted},
		{"funds beat capability", Request{From: &a.ID, To: &b.ID, Amount: 2000}, deny, wallet.ErrInsufficientBalance},
		{"capability last", Request{From: &a.ID, To: &b.ID, Amount: 10}, deny, ErrNotPermitted},
		{"unknown receiver", Request{From: &a.ID, To: &missing, Amount: 10}, SystemCapability{}, wallet.ErrWalletNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateTransfer(context.Background(), tt.req, tt.cap)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, int64(1000), f.balance(t, a.ID))
	txs, err := f.store.ListTransactions(context.Background(), a.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreateTransfer_LeavesTransactionPending(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 0)

	tr, err := f.engine.CreateTransfer(context.Background(), Request{From: &a.ID, To: &b.ID, Amount: 10}, SystemCapability{})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, tr.Status)
	assert.Equal(t, int64(1000), f.balance(t, a.ID))
}

func TestCreateTransfer_FrozenAmountCountsAgainstFunds(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 0)
	require.NoError(t, f.store.RunInTx(context.Background(), func(tx wallet.Tx) error {
		_, err := tx.AdjustFrozen(context.Background(), a.ID, 950)
		return err
	}))

	_, err := f.engine.CreateTransfer(context.Background(), Request{From: &a.ID, To: &b.ID, Amount: 100}, SystemCapability{})
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestTransfer_InsufficientScenario(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 1000)
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 0)

	_, err := f.engine.Transfer(context.Background(), Request{From: &a.ID, To: &b.ID, Amount: 2000}, SystemCapability{})
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	assert.Equal(t, int64(1000), f.balance(t, a.ID))
	assert.Equal(t, int64(0), f.balance(t, b.ID))
}

func TestSchedule_DefersFundsCheckToSettlement(t *testing.T) {
	f := newEngineFixture()
	a := f.store.Seed(wallet.UserOwner(uuid.New()), 10)
	b := f.store.Seed(wallet.BusinessOwner(uuid.New()), 0)

	tr, err := f.engine.Schedule(context.Background(), Request{From: &a.ID, To: &b.ID, Amount: 500, Kind: KindSubscription}, SystemCapability{})
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, tr.Status)
	assert.Equal(t, []uuid.UUID{tr.ID}, f.queue.ids)
}

func TestSchedule_QueueFailureKeepsPendingTransaction(t *testing.T) {
	f := newEngineFixture()
	f.queue.err = errors.New("redis down")
	b := f.store.Seed(wallet.UserOwner(uuid.New()), 0)

	tr, err := f.engine.Schedule(context.Background(), Request{To: &b.ID, Amount: 50}, SystemCapability{})
	require.NoError(t, err)

	stored, err := f.store.GetTransaction(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, stored.Status)
}

func TestOwnerCapability(t *testing.T) {
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	dir := account.NewMemoryDirectory()
	svc := wallet.NewService(store, dir)
	u := dir.AddUser("Selam", "selam@example.com", "0911223344")
	biz := dir.AddBusiness(u.ID, "Selam Bakery")

	mine := store.Seed(wallet.UserOwner(u.ID), 0)
	myShop := store.Seed(wallet.BusinessOwner(biz.ID), 0)
	theirs := store.Seed(wallet.UserOwner(uuid.New()), 0)

	c := OwnerCapability{UserID: u.ID, Wallets: svc}
	assert.NoError(t, c.MayDebit(ctx, mine))
	assert.NoError(t, c.MayDebit(ctx, myShop))
	assert.ErrorIs(t, c.MayDebit(ctx, theirs), ErrNotPermitted)
	assert.ErrorIs(t, c.MayDebit(ctx, nil), ErrNotPermitted)
}

func TestEngine_ConservationAcrossManyTransfers(t *testing.T) {
	f := newEngineFixture()
	wallets := []*wallet.Wallet{
		f.store.Seed(wallet.UserOwner(uuid.New()), 3000),
		f.store.Seed(wallet.UserOwner(uuid.New()), 2000),
		f.store.Seed(wallet.BusinessOwner(uuid.New()), 1000),
	}
	total := f.store.TotalBalance()

	for i := 0; i < 60; i++ {
		from := wallets[i%3]
		to := wallets[(i+1)%3]
		_, err := f.engine.Transfer(context.Background(), Request{From: &from.ID, To: &to.ID, Amount: int64(10 + i)}, SystemCapability{})
		if err != nil {
			assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
		}
		assert.Equal(t, total, f.store.TotalBalance())
	}

	for _, w := range wallets {
		assert.GreaterOrEqual(t, f.balance(t, w.ID), int64(0))
	}
}
