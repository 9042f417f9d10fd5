package queue

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// MemoryQueue is an in-process Queue used in tests and for running the
// service without Redis. Same retry semantics, no durability.
type MemoryQueue struct {
	policy RetryPolicy
	ready  chan *domain.TriageJob

	mu     sync.Mutex
	dead   []DeadJob
	timers []*time.Timer
}

// NewMemoryQueue constructs an in-memory queue.
func NewMemoryQueue(policy RetryPolicy) *MemoryQueue {
	return &MemoryQueue{
		policy: policy.normalized(),
		ready:  make(chan *domain.TriageJob, 1024),
	}
}

// Enqueue schedules a fresh job.
func (q *MemoryQueue) Enqueue(ctx context.Context, ticketID int64) error {
	job := &domain.TriageJob{TicketID: ticketID, Attempt: 1, EnqueuedAt: time.Now().UTC()}
	select {
	case q.ready <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a job is ready or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*domain.TriageJob, error) {
	select {
	case job := <-q.ready:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Retry re-schedules with backoff or parks the job.
func (q *MemoryQueue) Retry(ctx context.Context, job *domain.TriageJob, reason string) error {
	if q.policy.Exhausted(job.Attempt) {
		q.mu.Lock()
		q.dead = append(q.dead, DeadJob{Job: *job, Reason: reason, DiedAt: time.Now().UTC()})
		q.mu.Unlock()
		return nil
	}

	next := *job
	next.Attempt++
	timer := time.AfterFunc(q.policy.Delay(job.Attempt), func() {
		select {
		case q.ready <- &next:
		default:
		}
	})
	q.mu.Lock()
	q.timers = append(q.timers, timer)
	q.mu.Unlock()
	return nil
}

// DeadJobs returns parked jobs.
func (q *MemoryQueue) DeadJobs(_ context.Context, limit int) ([]DeadJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]DeadJob, len(q.dead))
	copy(jobs, q.dead)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Stop cancels pending retry timers.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
}

var _ Queue = (*MemoryQueue)(nil)
