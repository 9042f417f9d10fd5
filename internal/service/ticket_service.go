package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/queue"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

const (
	maxTitleChars   = 255
	maxContentChars = 50000
)

// TicketService handles creation and read access for tickets and their
// audit trail. Lifecycle mutations live in LifecycleService.
type TicketService struct {
	tickets    repository.TicketRepository
	processes  repository.WorkerProcessRepository
	jobs       queue.Queue
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	ProcessRepo repository.WorkerProcessRepository
	Jobs        queue.Queue
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		processes:  deps.ProcessRepo,
		jobs:       deps.Jobs,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket with status OPEN and enqueues a triage
// job. The enqueue is fire-and-forget: a queue failure is logged but the
// ticket is still created.
func (s *TicketService) CreateTicket(ctx context.Context, creatorID *int64, title, content string) (*domain.Ticket, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleChars {
		return nil, apperrors.NewValidationError("title must be 1-255 characters", nil)
	}
	if n := utf8.RuneCountInString(content); n < 1 || n > maxContentChars {
		return nil, apperrors.NewValidationError("content must be 1-50000 characters", nil)
	}

	ticket := &domain.Ticket{
		CreatorID: creatorID,
		Title:     title,
		Content:   content,
		Status:    domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.jobs.Enqueue(ctx, ticket.ID); err != nil {
		s.logger.Error("failed to enqueue triage job",
			zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    creatorActor(creatorID),
		Payload: events.TicketCreatedPayload{
			Title:     ticket.Title,
			CreatorID: creatorID,
		},
	})
	return ticket, nil
}

// GetTicketForUser fetches a ticket ensuring ownership.
func (s *TicketService) GetTicketForUser(ctx context.Context, userID, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err)
	}
	if ticket.CreatorID == nil || *ticket.CreatorID != userID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListUserTickets returns paginated tickets for a creator.
func (s *TicketService) ListUserTickets(ctx context.Context, userID int64, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByCreator(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// DeleteTicket removes a ticket. Deletion is a creator-only action; the
// triage pipeline never deletes.
func (s *TicketService) DeleteTicket(ctx context.Context, userID, ticketID int64) error {
	if _, err := s.GetTicketForUser(ctx, userID, ticketID); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return mapTicketErr(err)
	}
	return nil
}

// RetriggerTriage enqueues a fresh triage job for a ticket that is still
// open. Used by humans after an invalid model response.
func (s *TicketService) RetriggerTriage(ctx context.Context, userID, ticketID int64) error {
	ticket, err := s.GetTicketForUser(ctx, userID, ticketID)
	if err != nil {
		return err
	}
	if !ticket.IsEditable() {
		return apperrors.NewPreconditionFailed("triage cannot be re-triggered once the ticket is resolved or closed",
			map[string]any{"status": ticket.Status})
	}
	if err := s.jobs.Enqueue(ctx, ticketID); err != nil {
		return apperrors.NewUnavailable("failed to enqueue triage job", err)
	}
	return nil
}

// ListProcessRecords returns the ticket's triage audit trail, creator-only.
func (s *TicketService) ListProcessRecords(ctx context.Context, userID, ticketID int64, limit, offset int) ([]domain.WorkerProcessRecord, error) {
	if _, err := s.GetTicketForUser(ctx, userID, ticketID); err != nil {
		return nil, err
	}
	records, err := s.processes.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func creatorActor(creatorID *int64) events.Actor {
	if creatorID == nil {
		return events.Actor{Type: events.ActorTypeSystem}
	}
	return events.Actor{Type: events.ActorTypeUser, UserID: creatorID}
}
