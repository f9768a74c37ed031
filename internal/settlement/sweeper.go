package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"myme/internal/logger"
	"myme/internal/wallet"
)

const sweepBatch = 100

// Enqueuer puts a transaction back on the settlement queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, txID uuid.UUID) error
}

// Sweeper finds pending transactions nobody settled. Those older than
// StaleAfter go back on the queue; those older than FailAfter are failed.
type Sweeper struct {
	store      wallet.Store
	queue      Enqueuer
	settler    Settler
	StaleAfter time.Duration
	FailAfter  time.Duration
}

type SweepResult struct {
	Requeued int
	Failed   int
}

func NewSweeper(store wallet.Store, queue Enqueuer, settler Settler, staleAfter, failAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		queue:      queue,
		settler:    settler,
		StaleAfter: staleAfter,
		FailAfter:  failAfter,
	}
}

func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	stale, err := s.store.ListStalePending(ctx, now.Add(-s.StaleAfter), sweepBatch)
	if err != nil {
		return res, fmt.Errorf("list stale transactions: %w", err)
	}

	failBefore := now.Add(-s.FailAfter)
	for _, t := range stale {
		if t.CreatedAt.Before(failBefore) {
			if _, err := s.settler.Fail(ctx, t.ID, "never settled"); err != nil {
				logger.Error("failed to expire stale transaction", "transaction_id", t.ID, "error", err)
				continue
			}
			res.Failed++
			logger.Error("ALERT stale transaction failed, operator attention required",
				"transaction_id", t.ID,
				"created_at", t.CreatedAt,
				"amount", t.Amount,
			)
			continue
		}

		if err := s.queue.Enqueue(ctx, t.ID); err != nil {
			logger.Error("failed to requeue stale transaction", "transaction_id", t.ID, "error", err)
			continue
		}
		res.Requeued++
	}

	if res.Requeued > 0 || res.Failed > 0 {
		logger.Info("settlement sweep finished", "requeued", res.Requeued, "failed", res.Failed)
	}
	return res, nil
}
