package subscription

import (
	"context"
	"os"
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

type recordingQueue struct {
	ids []uuid.UUID
}

func (q *recordingQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return nil
}

type subscriptionFixture struct {
	ledger   *wallet.MemoryStore
	dir      *account.MemoryDirectory
	store    *MemoryStore
	queue    *recordingQueue
	engine   *transfer.Engine
	service  *Service
	owner    account.User
	business account.Business
	user     account.User
}

func newSubscriptionFixture() *subscriptionFixture {
	ledger := wallet.NewMemoryStore()
	dir := account.NewMemoryDirectory()
	store := NewMemoryStore()
	queue := &recordingQueue{}
	engine := transfer.NewEngine(ledger, settlement.NewReactor(ledger, dir, nil, "ETB"), queue)

	owner := dir.AddUser("Hanna", "hanna@example.com", "0911111111")
	business := dir.AddBusiness(owner.ID, "Sheger Gym")
	user := dir.AddUser("Dawit", "dawit@example.com", "0922222222")
	ledger.Seed(wallet.UserOwner(user.ID), 1000)

	return &subscriptionFixture{
		ledger:   ledger,
		dir:      dir,
		store:    store,
		queue:    queue,
		engine:   engine,
		service:  NewService(store, ledger, wallet.NewService(ledger, dir), engine, dir),
		owner:    owner,
		business: business,
		user:     user,
	}
}

func (f *subscriptionFixture) plan(t *testing.T, price int64) *Plan {
	p, err := f.service.CreatePlan(context.Background(), f.owner.ID, CreatePlanRequest{
		BusinessID:    f.business.ID,
		Name:          "Monthly membership",
		FrequencyDays: 30,
		Price:         price,
	})
	require.NoError(t, err)
	return p
}

func (f *subscriptionFixture) balance(t *testing.T, owner wallet.OwnerRef) int64 {
	w, err := f.ledger.GetWalletByOwner(context.Background(), owner)
	require.NoError(t, err)
	return w.Balance
}

func TestCreatePlan_OnlyOwner(t *testing.T) {
	f := newSubscriptionFixture()

	_, err := f.service.CreatePlan(context.Background(), f.user.ID, CreatePlanRequest{
		BusinessID: f.business.ID, Name: "x", FrequencyDays: 30, Price: 100,
	})
	assert.ErrorIs(t, err, ErrNotBusinessOwner)

	_, err = f.service.CreatePlan(context.Background(), f.owner.ID, CreatePlanRequest{
		BusinessID: uuid.New(), Name: "x", FrequencyDays: 30, Price: 100,
	})
	assert.ErrorIs(t, err, account.ErrBusinessNotFound)

	p := f.plan(t, 100)
	plans, err := f.service.ListPlans(context.Background(), &f.business.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, p.ID, plans[0].ID)
}

func TestSubscribe_ChargesFirstPeriod(t *testing.T) {
	f := newSubscriptionFixture()
	p := f.plan(t, 100)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return now }

	sub, err := f.service.Subscribe(context.Background(), f.user.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.True(t, now.AddDate(0, 0, 30).Equal(sub.NextBillingAt))
	require.NotNil(t, sub.LastTransactionID)

	assert.Equal(t, int64(900), f.balance(t, wallet.UserOwner(f.user.ID)))
	assert.Equal(t, int64(100), f.balance(t, wallet.BusinessOwner(f.business.ID)))

	_, err = f.service.Subscribe(context.Background(), f.user.ID, p.ID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscribe_InsufficientBalanceRecordsNothing(t *testing.T) {
	f := newSubscriptionFixture()
	p := f.plan(t, 5000)

	_, err := f.service.Subscribe(context.Background(), f.user.ID, p.ID)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	subs, err := f.service.ListMy(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, int64(1000), f.balance(t, wallet.UserOwner(f.user.ID)))
}

func TestUnsubscribeThenResubscribe(t *testing.T) {
	f := newSubscriptionFixture()
	p := f.plan(t, 100)
	ctx := context.Background()

	first, err := f.service.Subscribe(ctx, f.user.ID, p.ID)
	require.NoError(t, err)

	sub, err := f.service.Unsubscribe(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)

	subs, err := f.service.ListMy(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	again, err := f.service.Subscribe(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.IsActive)
	assert.Equal(t, int64(800), f.balance(t, wallet.UserOwner(f.user.ID)))

	_, err = f.service.Unsubscribe(ctx, f.user.ID, uuid.New())
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}
