package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
)

const promoteInterval = 250 * time.Millisecond

// RedisQueue is the durable queue implementation. Layout:
//
//	<prefix>:jobs  list of ready jobs (LPUSH producer, BRPOP consumer)
//	<prefix>:retry zset of delayed jobs scored by ready-at unix millis
//	<prefix>:dead  list of jobs that exhausted their attempts
type RedisQueue struct {
	client *redis.Client
	policy RetryPolicy
	logger *zap.Logger

	readyKey string
	retryKey string
	deadKey  string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRedisQueue constructs the queue. Call Start before consuming.
func NewRedisQueue(client *redis.Client, prefix string, policy RetryPolicy, logger *zap.Logger) *RedisQueue {
	if prefix == "" {
		prefix = "triage"
	}
	return &RedisQueue{
		client:   client,
		policy:   policy.normalized(),
		logger:   logger,
		readyKey: prefix + ":jobs",
		retryKey: prefix + ":retry",
		deadKey:  prefix + ":dead",
		done:     make(chan struct{}),
	}
}

// Start launches the background loop that promotes due retries back onto
// the ready list.
func (q *RedisQueue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go func() {
		defer close(q.done)
		ticker := time.NewTicker(promoteInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.promoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
					q.logger.Warn("retry promotion failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the promotion loop and waits for it to exit.
func (q *RedisQueue) Stop() {
	q.once.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		<-q.done
	})
}

// Enqueue pushes a fresh job for the ticket.
func (q *RedisQueue) Enqueue(ctx context.Context, ticketID int64) error {
	job := domain.TriageJob{TicketID: ticketID, Attempt: 1, EnqueuedAt: time.Now().UTC()}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.readyKey, payload).Err()
}

// Dequeue blocks until a job is ready or ctx is done.
func (q *RedisQueue) Dequeue(ctx context.Context) (*domain.TriageJob, error) {
	for {
		values, err := q.client.BRPop(ctx, time.Second, q.readyKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}
		// BRPop returns [key, value]
		var job domain.TriageJob
		if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
			q.logger.Error("dropping malformed job payload", zap.Error(err))
			continue
		}
		return &job, nil
	}
}

// Retry re-schedules the job with backoff or parks it once exhausted.
func (q *RedisQueue) Retry(ctx context.Context, job *domain.TriageJob, reason string) error {
	if q.policy.Exhausted(job.Attempt) {
		dead := DeadJob{Job: *job, Reason: reason, DiedAt: time.Now().UTC()}
		payload, err := json.Marshal(dead)
		if err != nil {
			return err
		}
		q.logger.Warn("job exhausted retries, moving to dead set",
			zap.Int64("ticket_id", job.TicketID),
			zap.Int("attempts", job.Attempt),
			zap.String("reason", reason))
		return q.client.LPush(ctx, q.deadKey, payload).Err()
	}

	delay := q.policy.Delay(job.Attempt)
	next := *job
	next.Attempt++
	payload, err := json.Marshal(next)
	if err != nil {
		return err
	}
	readyAt := time.Now().Add(delay)
	return q.client.ZAdd(ctx, q.retryKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: payload,
	}).Err()
}

// DeadJobs lists parked jobs, newest first.
func (q *RedisQueue) DeadJobs(ctx context.Context, limit int) ([]DeadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	values, err := q.client.LRange(ctx, q.deadKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]DeadJob, 0, len(values))
	for _, value := range values {
		var dead DeadJob
		if err := json.Unmarshal([]byte(value), &dead); err != nil {
			q.logger.Warn("skipping malformed dead job entry", zap.Error(err))
			continue
		}
		jobs = append(jobs, dead)
	}
	return jobs, nil
}

// promoteDue moves jobs whose backoff elapsed back onto the ready list.
// ZRem before LPush so concurrent promoters never duplicate a job.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, q.retryKey, &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatFloat(now, 'f', 0, 64), Count: 100,
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.retryKey, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey, member).Err(); err != nil {
			return err
		}
	}
	return nil
}

var _ Queue = (*RedisQueue)(nil)
