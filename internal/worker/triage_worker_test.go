package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/queue"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
)

type stubClassifier struct {
	outcome classifier.Outcome
	err     error
	calls   int
}

func (c *stubClassifier) Classify(_ context.Context, _ int64, _, _, _ string) (classifier.Outcome, error) {
	c.calls++
	return c.outcome, c.err
}

type fixture struct {
	worker  *TriageWorker
	queue   *queue.MemoryQueue
	tickets *repository.MemoryTicketRepository
	audit   *repository.MemoryWorkerProcessRepository
	metrics *observability.Metrics
}

func newFixture(t *testing.T, cls TicketClassifier) *fixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	audit := repository.NewMemoryWorkerProcessRepository()
	q := queue.NewMemoryQueue(queue.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond})
	t.Cleanup(q.Stop)
	metrics := observability.NewMetrics()
	w := New(Dependencies{
		Queue:       q,
		Classifier:  cls,
		Tickets:     tickets,
		Lifecycle:   service.NewLifecycleService(tickets, nil),
		Audit:       audit,
		Metrics:     metrics,
		Logger:      zap.NewNop(),
		Concurrency: 1,
		CallTimeout: time.Second,
	})
	return &fixture{worker: w, queue: q, tickets: tickets, audit: audit, metrics: metrics}
}

func seedTicket(t *testing.T, f *fixture) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Title:   "Cannot log in",
		Content: "Password reset emails never arrive.",
		Status:  domain.TicketStatusOpen,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func validOutcome(ticketID int64) classifier.Outcome {
	return classifier.Outcome{
		Result: domain.TriageResult{
			TicketID:       ticketID,
			Category:       domain.CategoryTechnical,
			SentimentScore: 4,
			Urgency:        domain.UrgencyHigh,
			ResponseDraft:  "We are checking the mail delivery logs.",
		},
		Valid: true,
		Raw:   `{"ticket_id": "1"}`,
	}
}

func records(t *testing.T, f *fixture, ticketID int64) []domain.WorkerProcessRecord {
	t.Helper()
	out, err := f.audit.ListByTicket(context.Background(), ticketID, 100, 0)
	require.NoError(t, err)
	return out
}

func TestProcessSuccess(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{}
	f := newFixture(t, cls)
	ticket := seedTicket(t, f)
	cls.outcome = validOutcome(ticket.ID)

	f.worker.process(ctx, "triage-test-1", &domain.TriageJob{TicketID: ticket.ID, Attempt: 1})

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.Category)
	assert.Equal(t, domain.CategoryTechnical, *updated.Category)
	require.NotNil(t, updated.ResponseDraft)
	assert.Equal(t, "We are checking the mail delivery logs.", *updated.ResponseDraft)
	require.NotNil(t, updated.ReplyMadeBy)
	assert.Equal(t, domain.ReplyMadeByAI, *updated.ReplyMadeBy)
	assert.Equal(t, domain.TagTriageDone, updated.Tag)

	recs := records(t, f, ticket.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.WorkerProcessInfo, recs[0].Status)
	assert.Equal(t, "triage-test-1", recs[0].WorkerID)
	require.NotNil(t, recs[0].ReplyText)
	assert.Equal(t, "We are checking the mail delivery logs.", *recs[0].ReplyText)
	assert.Equal(t, int64(1), f.metrics.TriageOutcome("info"))

	dead, err := f.queue.DeadJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestProcessInvalidResponse(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{outcome: classifier.Outcome{Valid: false, Raw: "I cannot help with that."}}
	f := newFixture(t, cls)
	ticket := seedTicket(t, f)

	f.worker.process(ctx, "triage-test-1", &domain.TriageJob{TicketID: ticket.ID, Attempt: 1})

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Nil(t, updated.Category)
	assert.Nil(t, updated.ResponseDraft)
	assert.Empty(t, updated.Tag)

	recs := records(t, f, ticket.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.WorkerProcessInvalidResponse, recs[0].Status)
	require.NotNil(t, recs[0].RawModelOutput)
	assert.Equal(t, "I cannot help with that.", *recs[0].RawModelOutput)
	require.NotNil(t, recs[0].ErrorMessage)
	assert.Contains(t, *recs[0].ErrorMessage, "triage-no-result")

	// Content problems are terminal: nothing scheduled, nothing parked.
	dead, err := f.queue.DeadJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
	assert.Equal(t, int64(1), f.metrics.TriageOutcome("invalid_response"))
}

func TestProcessRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{err: classifier.ErrUpstreamUnavailable}
	f := newFixture(t, cls)
	ticket := seedTicket(t, f)

	job := &domain.TriageJob{TicketID: ticket.ID, Attempt: 1}
	for attempt := 1; attempt <= 3; attempt++ {
		job.Attempt = attempt
		f.worker.process(ctx, "triage-test-1", job)
	}

	recs := records(t, f, ticket.ID)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, domain.WorkerProcessFailed, rec.Status)
	}

	dead, err := f.queue.DeadJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, ticket.ID, dead[0].Job.TicketID)
	assert.Contains(t, dead[0].Reason, "triage-error")

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Nil(t, updated.Category)
	assert.Equal(t, int64(3), f.metrics.TriageOutcome("failed"))
}

func TestProcessTicketNotFound(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{}
	f := newFixture(t, cls)

	f.worker.process(ctx, "triage-test-1", &domain.TriageJob{TicketID: 404, Attempt: 1})

	assert.Zero(t, cls.calls)
	recs := records(t, f, 404)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.WorkerProcessFailed, recs[0].Status)
	require.NotNil(t, recs[0].ErrorMessage)
	assert.Equal(t, "ticket not found", *recs[0].ErrorMessage)

	dead, err := f.queue.DeadJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
	assert.Equal(t, int64(1), f.metrics.TriageOutcome("not_found"))
}

func TestProcessStaleResult(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{}
	f := newFixture(t, cls)
	creator := int64(9)
	ticket := &domain.Ticket{
		CreatorID: &creator,
		Title:     "Slow dashboard",
		Content:   "Charts take a minute to load.",
		Status:    domain.TicketStatusOpen,
	}
	require.NoError(t, f.tickets.Create(ctx, ticket))
	cls.outcome = validOutcome(ticket.ID)

	lifecycle := service.NewLifecycleService(f.tickets, nil)
	_, err := lifecycle.Close(ctx, ticket.ID, creator)
	require.NoError(t, err)

	f.worker.process(ctx, "triage-test-1", &domain.TriageJob{TicketID: ticket.ID, Attempt: 1})

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	assert.Nil(t, updated.Category)

	recs := records(t, f, ticket.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.WorkerProcessInfo, recs[0].Status)
	require.NotNil(t, recs[0].ErrorMessage)
	assert.Contains(t, *recs[0].ErrorMessage, "stale")
	assert.Equal(t, int64(1), f.metrics.TriageOutcome("stale"))

	dead, err := f.queue.DeadJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestProcessRedelivery(t *testing.T) {
	ctx := context.Background()
	cls := &stubClassifier{}
	f := newFixture(t, cls)
	ticket := seedTicket(t, f)
	cls.outcome = validOutcome(ticket.ID)

	f.worker.process(ctx, "triage-test-1", &domain.TriageJob{TicketID: ticket.ID, Attempt: 1})

	redelivered := validOutcome(ticket.ID)
	redelivered.Result.Category = domain.CategoryBilling
	cls.outcome = redelivered
	f.worker.process(ctx, "triage-test-2", &domain.TriageJob{TicketID: ticket.ID, Attempt: 1})

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.Category)
	assert.Equal(t, domain.CategoryBilling, *updated.Category)

	recs := records(t, f, ticket.ID)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.WorkerProcessInfo, recs[0].Status)
	assert.Equal(t, domain.WorkerProcessInfo, recs[1].Status)
	assert.Equal(t, int64(2), f.metrics.TriageOutcome("info"))
}

func TestStartConsumesEnqueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cls := &stubClassifier{}
	f := newFixture(t, cls)
	ticket := seedTicket(t, f)
	cls.outcome = validOutcome(ticket.ID)

	f.worker.Start(ctx)
	defer f.worker.Stop()

	require.NoError(t, f.queue.Enqueue(ctx, ticket.ID))

	deadline := time.After(2 * time.Second)
	for {
		if f.metrics.TriageOutcome("info") == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job was not processed in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	updated, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
}
