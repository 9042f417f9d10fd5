package domain

import "time"

// TriageJob is the unit of work carried by the job queue. It holds only
// the ticket id; the worker re-reads the ticket to avoid staleness.
type TriageJob struct {
	TicketID   int64     `json:"ticket_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TriageResult is the structured output of classification. Normalization
// guarantees every field holds an allowed value, but not that the values
// are semantically correct.
type TriageResult struct {
	TicketID       int64
	Category       TicketCategory
	SentimentScore int
	Urgency        TicketUrgency
	ResponseDraft  string
}

// WorkerProcessStatus classifies the outcome of a processing attempt.
type WorkerProcessStatus string

const (
	WorkerProcessInfo            WorkerProcessStatus = "INFO"
	WorkerProcessFailed          WorkerProcessStatus = "FAILED"
	WorkerProcessInvalidResponse WorkerProcessStatus = "INVALID_RESPONSE"
)

// WorkerProcessRecord is an append-only audit entry, one per triage
// processing attempt. Records are never mutated or deleted.
type WorkerProcessRecord struct {
	ID             int64
	WorkerID       string
	TicketID       int64
	Status         WorkerProcessStatus
	ReplyText      *string
	RawModelOutput *string
	ErrorMessage   *string
	CreatedAt      time.Time
}
