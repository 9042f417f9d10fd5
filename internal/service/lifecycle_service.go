package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// ErrStaleTriage signals that a triage result arrived after the ticket
// was resolved or closed. The result is discarded in full: neither the
// classification fields nor the status are touched.
var ErrStaleTriage = errors.New("ticket no longer open for triage")

// DraftActor identifies who is editing a draft.
type DraftActor string

const (
	DraftActorHuman  DraftActor = "HUMAN"
	DraftActorSystem DraftActor = "SYSTEM"
)

// LifecycleService enforces the ticket state machine. All status and
// classification writes go through its guarded operations; callers never
// write ticket fields directly.
type LifecycleService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// NewLifecycleService constructs the service.
func NewLifecycleService(tickets repository.TicketRepository, dispatcher events.Dispatcher) *LifecycleService {
	return &LifecycleService{tickets: tickets, dispatcher: dispatcher}
}

// EditDraft replaces the response draft. Legal only while the ticket is
// OPEN or IN_PROGRESS. A human edit marks the draft HUMAN_AI.
func (s *LifecycleService) EditDraft(ctx context.Context, ticketID int64, text string, actor DraftActor) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if !ticket.IsEditable() {
		return nil, apperrors.NewPreconditionFailed("draft cannot be edited once the ticket is resolved or closed",
			map[string]any{"status": ticket.Status})
	}

	madeBy := domain.ReplyMadeByAI
	if actor == DraftActorHuman {
		madeBy = domain.ReplyMadeByHumanAI
	}
	updated, err := s.tickets.UpdateFields(ctx, ticketID, repository.TicketUpdate{
		ResponseDraft: &text,
		ReplyMadeBy:   &madeBy,
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventDraftEdited,
		TicketID: ticketID,
		Actor:    actorForDraft(actor),
		Payload: events.DraftEditedPayload{
			ReplyMadeBy:  madeBy,
			DraftPreview: stringPreview(text, 120),
		},
	})
	return updated, nil
}

// Resolve copies the draft verbatim into the final response and moves the
// ticket to RESOLVED. Requires an OPEN or IN_PROGRESS ticket with a
// non-blank draft.
func (s *LifecycleService) Resolve(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewPreconditionFailed("ticket cannot be resolved in its current status",
			map[string]any{"status": ticket.Status})
	}
	if !ticket.HasUsableDraft() {
		return nil, apperrors.NewPreconditionFailed("ticket has no usable response draft", nil)
	}

	response := *ticket.ResponseDraft
	status := domain.TicketStatusResolved
	updated, err := s.tickets.UpdateFields(ctx, ticketID, repository.TicketUpdate{
		Response: &response,
		Status:   &status,
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticketID,
		Payload: events.TicketResolvedPayload{
			ResponsePreview: stringPreview(response, 120),
		},
	})
	return updated, nil
}

// Close sets the ticket CLOSED. Only the owning creator may close;
// ownerless tickets cannot be closed through this action, and closing an
// already-closed ticket is rejected rather than silently ignored.
func (s *LifecycleService) Close(ctx context.Context, ticketID, requestingUserID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if ticket.CreatorID == nil {
		return nil, apperrors.NewForbidden("ticket has no owner and cannot be closed")
	}
	if *ticket.CreatorID != requestingUserID {
		return nil, apperrors.NewForbidden("only the ticket creator may close it")
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewPreconditionFailed("ticket is already closed", nil)
	}

	previous := ticket.Status
	status := domain.TicketStatusClosed
	updated, err := s.tickets.UpdateFields(ctx, ticketID, repository.TicketUpdate{Status: &status})
	if err != nil {
		return nil, mapTicketErr(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticketID,
		Actor:    events.Actor{Type: events.ActorTypeUser, UserID: &requestingUserID},
		Payload:  events.TicketClosedPayload{PreviousStatus: previous},
	})
	return updated, nil
}

// ApplyTriage installs a valid triage result: full overwrite of the
// classification fields, draft provenance AI, status toward IN_PROGRESS,
// and the triage-done tag marker. Re-applying for the same ticket is a
// safe overwrite. Returns ErrStaleTriage if the ticket was resolved or
// closed between enqueue and processing.
func (s *LifecycleService) ApplyTriage(ctx context.Context, ticketID int64, result domain.TriageResult, workerID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusInProgress {
		return nil, ErrStaleTriage
	}

	madeBy := domain.ReplyMadeByAI
	status := domain.TicketStatusInProgress
	tag := ticket.AppendTag(domain.TagTriageDone)
	updated, err := s.tickets.UpdateFields(ctx, ticketID, repository.TicketUpdate{
		Category:       &result.Category,
		SentimentScore: &result.SentimentScore,
		Urgency:        &result.Urgency,
		ResponseDraft:  &result.ResponseDraft,
		ReplyMadeBy:    &madeBy,
		Status:         &status,
		Tag:            &tag,
	})
	if err != nil {
		return nil, mapTicketErr(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketTriaged,
		TicketID: ticketID,
		Actor:    events.Actor{Type: events.ActorTypeSystem, WorkerID: &workerID},
		Payload: events.TicketTriagedPayload{
			Category:       result.Category,
			SentimentScore: result.SentimentScore,
			Urgency:        result.Urgency,
			DraftPreview:   stringPreview(result.ResponseDraft, 120),
		},
	})
	return updated, nil
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorForDraft(actor DraftActor) events.Actor {
	if actor == DraftActorHuman {
		return events.Actor{Type: events.ActorTypeUser}
	}
	return events.Actor{Type: events.ActorTypeSystem}
}

func mapTicketErr(err error) error {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code == "NOT_FOUND" {
		return apperrors.NewNotFound("ticket", nil)
	}
	return domainErr
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
