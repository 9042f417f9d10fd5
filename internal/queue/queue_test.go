package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second}

	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, time.Second, policy.Delay(0), "attempt below one clamps to base")
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second}

	assert.False(t, policy.Exhausted(1))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.True(t, policy.Exhausted(4))
}

func TestRetryPolicyDefaults(t *testing.T) {
	var zero RetryPolicy
	normalized := zero.normalized()

	assert.Equal(t, 3, normalized.MaxAttempts)
	assert.Equal(t, time.Second, normalized.BackoffBase)
}

func TestMemoryQueueEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(DefaultRetryPolicy())
	defer q.Stop()

	require.NoError(t, q.Enqueue(ctx, 42))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.TicketID)
	assert.Equal(t, 1, job.Attempt)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(DefaultRetryPolicy())
	defer q.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueRetryRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond})
	defer q.Stop()

	job := &domain.TriageJob{TicketID: 7, Attempt: 1, EnqueuedAt: time.Now()}
	require.NoError(t, q.Retry(ctx, job, "triage-error: upstream unavailable"))

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	redelivered, err := q.Dequeue(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), redelivered.TicketID)
	assert.Equal(t, 2, redelivered.Attempt)

	dead, err := q.DeadJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestMemoryQueueRetryParksExhaustedJob(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(RetryPolicy{MaxAttempts: 2, BackoffBase: time.Millisecond})
	defer q.Stop()

	job := &domain.TriageJob{TicketID: 9, Attempt: 2, EnqueuedAt: time.Now()}
	require.NoError(t, q.Retry(ctx, job, "triage-error: classification failed"))

	dead, err := q.DeadJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, int64(9), dead[0].Job.TicketID)
	assert.Equal(t, 2, dead[0].Job.Attempt)
	assert.Equal(t, "triage-error: classification failed", dead[0].Reason)
	assert.False(t, dead[0].DiedAt.IsZero())

	// Parked jobs are never redelivered.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueDeadJobsLimit(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(RetryPolicy{MaxAttempts: 1, BackoffBase: time.Millisecond})
	defer q.Stop()

	for i := int64(1); i <= 5; i++ {
		job := &domain.TriageJob{TicketID: i, Attempt: 1}
		require.NoError(t, q.Retry(ctx, job, "triage-error: boom"))
	}

	dead, err := q.DeadJobs(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, dead, 3)
}
