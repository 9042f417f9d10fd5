package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketTriaged  EventType = "ticket_triaged"
	EventDraftEdited    EventType = "draft_edited"
	EventTicketResolved EventType = "ticket_resolved"
	EventTicketClosed   EventType = "ticket_closed"
)

// ActorType distinguishes humans from the triage pipeline.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeSystem ActorType = "SYSTEM"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type     ActorType `json:"type"`
	UserID   *int64    `json:"user_id,omitempty"`
	WorkerID *string   `json:"worker_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title     string `json:"title"`
	CreatorID *int64 `json:"creator_id,omitempty"`
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Category       domain.TicketCategory `json:"category"`
	SentimentScore int                   `json:"sentiment_score"`
	Urgency        domain.TicketUrgency  `json:"urgency"`
	DraftPreview   string                `json:"draft_preview"`
}

// DraftEditedPayload payload.
type DraftEditedPayload struct {
	ReplyMadeBy  domain.ReplySource `json:"reply_made_by"`
	DraftPreview string             `json:"draft_preview"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ResponsePreview string `json:"response_preview"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	PreviousStatus domain.TicketStatus `json:"previous_status"`
}
