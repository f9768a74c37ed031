package dispute

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/wallet"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type disputeFixture struct {
	ledger   *wallet.MemoryStore
	dir      *account.MemoryDirectory
	service  *Service
	sender   *wallet.Wallet
	receiver *wallet.Wallet
}

func newDisputeFixture() *disputeFixture {
	ledger := wallet.NewMemoryStore()
	dir := account.NewMemoryDirectory()
	return &disputeFixture{
		ledger:   ledger,
		dir:      dir,
		service:  NewService(NewMemoryStore(ledger), ledger, dir, nil, "ETB"),
		sender:   ledger.Seed(wallet.UserOwner(uuid.New()), 1000),
		receiver: ledger.Seed(wallet.BusinessOwner(uuid.New()), 500),
	}
}

// completed records a settled transfer from sender to receiver.
func (f *disputeFixture) completed(t *testing.T, amount int64) *wallet.Transaction {
	ctx := context.Background()
	tr := &wallet.Transaction{FromWallet: &f.sender.ID, ToWallet: &f.receiver.ID, Amount: amount, Status: wallet.StatusCompleted}
	require.NoError(t, f.ledger.RunInTx(ctx, func(tx wallet.Tx) error {
		if _, err := tx.ApplyDelta(ctx, f.sender.ID, -amount); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, f.receiver.ID, amount); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, tr)
	}))
	return tr
}

func (f *disputeFixture) balance(t *testing.T, id uuid.UUID) int64 {
	w, err := f.ledger.GetWallet(context.Background(), id)
	require.NoError(t, err)
	return w.Balance
}

func TestCreate_DefaultsAmountToTransaction(t *testing.T) {
	f := newDisputeFixture()
	tr := f.completed(t, 300)

	d, err := f.service.Create(context.Background(), CreateRequest{TransactionID: tr.ID, PhoneNumber: "0911223344"})
	require.NoError(t, err)
	assert.Equal(t, int64(300), d.Amount)
	assert.Equal(t, StatusNeedsResponse, d.Status)
	assert.Equal(t, "911223344", d.PhoneNumber)

	zero := int64(0)
	other := f.completed(t, 120)
	d, err = f.service.Create(context.Background(), CreateRequest{TransactionID: other.ID, Amount: &zero})
	require.NoError(t, err)
	assert.Equal(t, int64(120), d.Amount)
}

func TestCreate_Rules(t *testing.T) {
	f := newDisputeFixture()
	ctx := context.Background()
	tr := f.completed(t, 300)
	tooMuch := int64(301)

	_, err := f.service.Create(ctx, CreateRequest{TransactionID: uuid.New()})
	assert.ErrorIs(t, err, wallet.ErrTransactionNotFound)

	_, err = f.service.Create(ctx, CreateRequest{TransactionID: tr.ID, Amount: &tooMuch})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	pending := &wallet.Transaction{FromWallet: &f.sender.ID, ToWallet: &f.receiver.ID, Amount: 10}
	require.NoError(t, f.ledger.CreateTransaction(ctx, pending))
	_, err = f.service.Create(ctx, CreateRequest{TransactionID: pending.ID})
	assert.ErrorIs(t, err, ErrNotDisputable)

	_, err = f.service.Create(ctx, CreateRequest{TransactionID: tr.ID})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, CreateRequest{TransactionID: tr.ID})
	assert.ErrorIs(t, err, ErrAlreadyDisputed)
}

func TestWorkflow_RefundScenario(t *testing.T) {
	f := newDisputeFixture()
	ctx := context.Background()
	tr := f.completed(t, 300)
	require.Equal(t, int64(700), f.balance(t, f.sender.ID))
	require.Equal(t, int64(800), f.balance(t, f.receiver.ID))

	d, err := f.service.Create(ctx, CreateRequest{TransactionID: tr.ID})
	require.NoError(t, err)

	d, err = f.service.MoveToReview(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, d.Status)

	d, err = f.service.MarkReviewed(ctx, d.ID, "merchant confirmed double charge")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, d.Status)
	assert.Equal(t, "merchant confirmed double charge", d.Notes)

	d, err = f.service.ProcessRefund(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, d.Status)
	require.NotNil(t, d.ResolvedAt)
	require.NotNil(t, d.RefundTransactionID)

	refund, err := f.ledger.GetTransaction(ctx, *d.RefundTransactionID)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCompleted, refund.Status)
	assert.Equal(t, f.receiver.ID, *refund.FromWallet)
	assert.Equal(t, f.sender.ID, *refund.ToWallet)
	assert.Equal(t, int64(300), refund.Amount)

	assert.Equal(t, int64(1000), f.balance(t, f.sender.ID))
	assert.Equal(t, int64(500), f.balance(t, f.receiver.ID))

	// The refund itself cannot be disputed.
	_, err = f.service.Create(ctx, CreateRequest{TransactionID: refund.ID})
	assert.ErrorIs(t, err, ErrNotDisputable)
}

func TestWorkflow_RepeatedTransitionIsNoop(t *testing.T) {
	f := newDisputeFixture()
	ctx := context.Background()
	d, err := f.service.Create(ctx, CreateRequest{TransactionID: f.completed(t, 100).ID})
	require.NoError(t, err)

	_, err = f.service.MoveToReview(ctx, d.ID)
	require.NoError(t, err)
	again, err := f.service.MoveToReview(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, again.Status)

	_, err = f.service.MarkReviewed(ctx, d.ID, "ok")
	require.NoError(t, err)
	first, err := f.service.ProcessRefund(ctx, d.ID)
	require.NoError(t, err)
	second, err := f.service.ProcessRefund(ctx, d.ID)
	require.NoError(t, err)

	assert.Equal(t, first.RefundTransactionID, second.RefundTransactionID)
	assert.Equal(t, int64(1000), f.balance(t, f.sender.ID))
}

func TestWorkflow_SkippingStatesIsRejected(t *testing.T) {
	f := newDisputeFixture()
	ctx := context.Background()
	d, err := f.service.Create(ctx, CreateRequest{TransactionID: f.completed(t, 100).ID})
	require.NoError(t, err)

	_, err = f.service.MarkReviewed(ctx, d.ID, "too early")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.service.ProcessRefund(ctx, d.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.service.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsResponse, got.Status)
	assert.Empty(t, got.Notes)
	assert.Nil(t, got.RefundTransactionID)

	_, err = f.service.MoveToReview(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.service.MoveToReview(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDisputeNotFound)
}

func TestProcessRefund_ReceiverCannotCover(t *testing.T) {
	f := newDisputeFixture()
	ctx := context.Background()
	tr := f.completed(t, 300)
	d, err := f.service.Create(ctx, CreateRequest{TransactionID: tr.ID})
	require.NoError(t, err)
	_, err = f.service.MoveToReview(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.service.MarkReviewed(ctx, d.ID, "ok")
	require.NoError(t, err)

	// Receiver spends everything before the refund.
	f.ledger.Seed(f.receiver.Owner(), 0)

	_, err = f.service.ProcessRefund(ctx, d.ID)
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	got, err := f.service.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, got.Status)
	assert.Equal(t, int64(700), f.balance(t, f.sender.ID))
}
