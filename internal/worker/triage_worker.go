package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/queue"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
)

// TicketClassifier is the slice of the classifier the worker needs.
type TicketClassifier interface {
	Classify(ctx context.Context, ticketID int64, title, content, extraContext string) (classifier.Outcome, error)
}

// Dependencies bundles worker collaborators.
type Dependencies struct {
	Queue       queue.Queue
	Classifier  TicketClassifier
	Tickets     repository.TicketRepository
	Lifecycle   *service.LifecycleService
	Audit       repository.WorkerProcessRepository
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Concurrency int
	CallTimeout time.Duration
}

// TriageWorker consumes triage jobs with bounded concurrency. Each job is
// processed at most once at a time per ticket; redelivery of an already
// triaged ticket overwrites classification fields and appends another
// audit record.
type TriageWorker struct {
	deps    Dependencies
	poolKey string

	mu      sync.Mutex
	locks   map[int64]*sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once
}

// New constructs a worker pool. Call Start to begin consuming.
func New(deps Dependencies) *TriageWorker {
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 30 * time.Second
	}
	return &TriageWorker{
		deps:    deps,
		poolKey: strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Start launches the handler goroutines.
func (w *TriageWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.deps.Concurrency; i++ {
		workerID := fmt.Sprintf("triage-%s-%d", w.poolKey, i+1)
		w.wg.Add(1)
		go w.run(ctx, workerID)
	}
	w.deps.Logger.Info("triage worker pool started",
		zap.Int("concurrency", w.deps.Concurrency))
}

// Stop halts consumption and waits for in-flight jobs to finish.
func (w *TriageWorker) Stop() {
	w.stopped.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}

func (w *TriageWorker) run(ctx context.Context, workerID string) {
	defer w.wg.Done()
	for {
		job, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.deps.Logger.Error("dequeue failed", zap.String("worker_id", workerID), zap.Error(err))
			continue
		}
		w.process(ctx, workerID, job)
	}
}

// process handles one job end to end. Only one handler works on a given
// ticket at a time; other handlers serialize behind the per-ticket lock.
func (w *TriageWorker) process(ctx context.Context, workerID string, job *domain.TriageJob) {
	unlock := w.lockTicket(job.TicketID)
	defer unlock()

	ticket, err := w.deps.Tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Not transient: the ticket is gone, retrying cannot help.
			w.appendAudit(ctx, failedRecord(workerID, job.TicketID, "ticket not found"))
			w.deps.Metrics.RecordTriageOutcome("not_found")
			return
		}
		w.appendAudit(ctx, failedRecord(workerID, job.TicketID, err.Error()))
		w.retry(ctx, job, err.Error())
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.deps.CallTimeout)
	outcome, err := w.deps.Classifier.Classify(callCtx, ticket.ID, ticket.Title, ticket.Content, "")
	cancel()
	if err != nil {
		w.appendAudit(ctx, failedRecord(workerID, job.TicketID, err.Error()))
		w.deps.Metrics.RecordTriageOutcome("failed")
		w.retry(ctx, job, err.Error())
		return
	}

	if !outcome.Valid {
		// Content problem, not infrastructure: no retry, ticket untouched.
		record := &domain.WorkerProcessRecord{
			WorkerID:       workerID,
			TicketID:       job.TicketID,
			Status:         domain.WorkerProcessInvalidResponse,
			RawModelOutput: strPtr(outcome.Raw),
			ErrorMessage:   strPtr(domain.TagTriageNoResult + ": model response failed validation"),
		}
		w.appendAudit(ctx, record)
		w.deps.Metrics.RecordTriageOutcome("invalid_response")
		return
	}

	_, err = w.deps.Lifecycle.ApplyTriage(ctx, job.TicketID, outcome.Result, workerID)
	if err != nil {
		if errors.Is(err, service.ErrStaleTriage) {
			record := &domain.WorkerProcessRecord{
				WorkerID:       workerID,
				TicketID:       job.TicketID,
				Status:         domain.WorkerProcessInfo,
				RawModelOutput: strPtr(outcome.Raw),
				ErrorMessage:   strPtr("stale triage result discarded; ticket already resolved or closed"),
			}
			w.appendAudit(ctx, record)
			w.deps.Metrics.RecordTriageOutcome("stale")
			return
		}
		w.appendAudit(ctx, failedRecord(workerID, job.TicketID, err.Error()))
		w.deps.Metrics.RecordTriageOutcome("failed")
		w.retry(ctx, job, err.Error())
		return
	}

	record := &domain.WorkerProcessRecord{
		WorkerID:       workerID,
		TicketID:       job.TicketID,
		Status:         domain.WorkerProcessInfo,
		ReplyText:      strPtr(outcome.Result.ResponseDraft),
		RawModelOutput: strPtr(outcome.Raw),
	}
	w.appendAudit(ctx, record)
	w.deps.Metrics.RecordTriageOutcome("info")
	w.deps.Logger.Info("ticket triaged",
		zap.String("worker_id", workerID),
		zap.Int64("ticket_id", job.TicketID),
		zap.Int("attempt", job.Attempt))
}

func (w *TriageWorker) retry(ctx context.Context, job *domain.TriageJob, reason string) {
	if err := w.deps.Queue.Retry(ctx, job, domain.TagTriageError+": "+reason); err != nil {
		w.deps.Logger.Error("failed to schedule retry",
			zap.Int64("ticket_id", job.TicketID), zap.Error(err))
	}
}

// appendAudit writes one attempt record. The audit log is advisory: a
// logging failure must never change the outcome of the attempt.
func (w *TriageWorker) appendAudit(ctx context.Context, record *domain.WorkerProcessRecord) {
	if err := w.deps.Audit.Append(ctx, record); err != nil {
		w.deps.Logger.Error("failed to append worker process record",
			zap.Int64("ticket_id", record.TicketID),
			zap.String("status", string(record.Status)),
			zap.Error(err))
	}
}

func (w *TriageWorker) lockTicket(ticketID int64) func() {
	w.mu.Lock()
	lock, ok := w.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[ticketID] = lock
	}
	w.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func failedRecord(workerID string, ticketID int64, message string) *domain.WorkerProcessRecord {
	return &domain.WorkerProcessRecord{
		WorkerID:     workerID,
		TicketID:     ticketID,
		Status:       domain.WorkerProcessFailed,
		ErrorMessage: strPtr(message),
	}
}

func strPtr(s string) *string {
	return &s
}
