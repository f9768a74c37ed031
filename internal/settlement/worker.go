package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"myme/internal/logger"
	"myme/internal/wallet"
)

// Settler is the part of Reactor the worker and sweeper drive.
type Settler interface {
	Settle(ctx context.Context, txID uuid.UUID) (*wallet.Transaction, error)
	Fail(ctx context.Context, txID uuid.UUID, reason string) (*wallet.Transaction, error)
}

type Worker struct {
	queue       *Queue
	settler     Settler
	maxAttempts int
	popTimeout  time.Duration
	retryDelay  time.Duration
}

func NewWorker(queue *Queue, settler Settler, maxAttempts int) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{
		queue:       queue,
		settler:     settler,
		maxAttempts: maxAttempts,
		popTimeout:  2 * time.Second,
		retryDelay:  time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	logger.Info("settlement worker started", "max_attempts", w.maxAttempts)

	for {
		select {
		case <-ctx.Done():
			logger.Info("settlement worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *Worker) processNext(ctx context.Context) {
	job, err := w.queue.Pop(ctx, w.popTimeout)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to read settlement queue", "error", err)
			time.Sleep(w.retryDelay)
		}
		return
	}
	if job == nil {
		return
	}

	w.handle(ctx, *job)
}

func (w *Worker) handle(ctx context.Context, job Job) {
	job.Attempts++

	_, err := w.settler.Settle(ctx, job.TransactionID)
	switch {
	case err == nil:
		return
	case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, wallet.ErrWalletRestricted):
		// Final outcome, already recorded on the transaction.
		return
	case errors.Is(err, wallet.ErrTransactionNotFound):
		logger.Error("dropping settlement job for unknown transaction", "transaction_id", job.TransactionID)
		return
	}

	logger.Error("settlement attempt failed",
		"transaction_id", job.TransactionID,
		"attempt", job.Attempts,
		"error", err,
	)

	if job.Attempts < w.maxAttempts {
		if err := w.queue.Requeue(context.WithoutCancel(ctx), job); err != nil {
			logger.Error("failed to requeue settlement job", "transaction_id", job.TransactionID, "error", err)
		}
		return
	}

	w.giveUp(context.WithoutCancel(ctx), job, err)
}

func (w *Worker) giveUp(ctx context.Context, job Job, cause error) {
	if _, err := w.settler.Fail(ctx, job.TransactionID, "settlement retries exhausted"); err != nil {
		logger.Error("failed to mark transaction failed", "transaction_id", job.TransactionID, "error", err)
	}
	if err := w.queue.Dead(ctx, job, cause); err != nil {
		logger.Error("failed to park dead settlement job", "transaction_id", job.TransactionID, "error", err)
	}
	logger.Error("ALERT settlement abandoned, operator attention required",
		"transaction_id", job.TransactionID,
		"attempts", job.Attempts,
		"error", cause,
	)
}
