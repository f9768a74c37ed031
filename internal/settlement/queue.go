package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"myme/internal/metrics"
)

const (
	pendingKey = "settlement:pending"
	deadKey    = "settlement:dead"
)

type Job struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// Queue is a Redis list of transactions waiting for asynchronous settlement.
// Delivery is at least once; Settle is idempotent so duplicates are harmless.
type Queue struct {
	redis *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{redis: rdb}
}

func (q *Queue) Enqueue(ctx context.Context, txID uuid.UUID) error {
	return q.push(ctx, pendingKey, Job{TransactionID: txID, EnqueuedAt: time.Now()})
}

func (q *Queue) Requeue(ctx context.Context, job Job) error {
	return q.push(ctx, pendingKey, job)
}

// Pop waits up to timeout for the next job. It returns nil, nil when the
// queue stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.redis.BRPop(ctx, timeout, pendingKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("decode settlement job: %w", err)
	}
	return &job, nil
}

// Dead parks a job that exhausted its attempts for operator inspection.
func (q *Queue) Dead(ctx context.Context, job Job, cause error) error {
	entry := map[string]any{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, deadKey, data).Err()
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.redis.LLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, err
	}
	metrics.SettlementQueueLength.Set(float64(n))
	return n, nil
}

func (q *Queue) push(ctx context.Context, key string, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push %s: %w", job.TransactionID, err)
	}
	return nil
}
