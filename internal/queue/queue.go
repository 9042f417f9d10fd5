package queue

import (
	"context"
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Queue carries triage jobs with at-least-once delivery. Implementations
// own their retry bookkeeping; handlers must tolerate redelivery.
type Queue interface {
	// Enqueue schedules a job for the ticket, fire-and-forget.
	Enqueue(ctx context.Context, ticketID int64) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*domain.TriageJob, error)
	// Retry re-schedules a failed job with backoff, or parks it in the
	// dead set once attempts are exhausted. It never drops a job.
	Retry(ctx context.Context, job *domain.TriageJob, reason string) error
	// DeadJobs returns parked jobs for operator inspection.
	DeadJobs(ctx context.Context, limit int) ([]DeadJob, error)
}

// DeadJob is a job that exhausted its retry attempts.
type DeadJob struct {
	Job    domain.TriageJob `json:"job"`
	Reason string           `json:"reason"`
	DiedAt time.Time        `json:"died_at"`
}

// RetryPolicy bounds delivery attempts with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryPolicy matches the queue defaults: 3 attempts, 1s base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = time.Second
	}
	return p
}

// Exhausted reports whether a job that just failed attempt number
// attempt has no retries left.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.normalized().MaxAttempts
}

// Delay returns the backoff before re-delivering after the given failed
// attempt: base for the first failure, doubling each attempt after.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
