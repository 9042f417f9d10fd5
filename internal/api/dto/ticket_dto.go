package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EditDraftRequest payload.
type EditDraftRequest struct {
	ResponseDraft string `json:"response_draft"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID             int64                  `json:"id"`
	CreatorID      *int64                 `json:"creator_id,omitempty"`
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	Category       *domain.TicketCategory `json:"category"`
	SentimentScore *int                   `json:"sentiment_score"`
	Urgency        *domain.TicketUrgency  `json:"urgency"`
	ResponseDraft  *string                `json:"response_draft"`
	Response       *string                `json:"response"`
	ReplyMadeBy    *domain.ReplySource    `json:"reply_made_by"`
	Status         domain.TicketStatus    `json:"status"`
	Tag            string                 `json:"tag"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ProcessRecordResponse is one triage attempt audit entry.
type ProcessRecordResponse struct {
	ID             int64                      `json:"id"`
	WorkerID       string                     `json:"worker_id"`
	TicketID       int64                      `json:"ticket_id"`
	Status         domain.WorkerProcessStatus `json:"status"`
	ReplyText      *string                    `json:"reply_text"`
	RawModelOutput *string                    `json:"raw_model_output"`
	ErrorMessage   *string                    `json:"error_message"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// DeadJobResponse is a parked triage job.
type DeadJobResponse struct {
	TicketID int64     `json:"ticket_id"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	DiedAt   time.Time `json:"died_at"`
}
