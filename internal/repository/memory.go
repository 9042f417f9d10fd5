package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/domain"
)

// MemoryTicketRepository is an in-memory TicketRepository used in tests
// and for running without Postgres. Same partial-update semantics as the
// Postgres implementation.
type MemoryTicketRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*domain.Ticket
}

// NewMemoryTicketRepository constructs an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{nextID: 1, items: make(map[int64]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = r.nextID
	r.nextID++
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	clone := *ticket
	r.items[ticket.ID] = &clone
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *MemoryTicketRepository) UpdateFields(_ context.Context, id int64, update TicketUpdate) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if update.Category != nil {
		ticket.Category = update.Category
	}
	if update.SentimentScore != nil {
		ticket.SentimentScore = update.SentimentScore
	}
	if update.Urgency != nil {
		ticket.Urgency = update.Urgency
	}
	if update.ResponseDraft != nil {
		ticket.ResponseDraft = update.ResponseDraft
	}
	if update.Response != nil {
		ticket.Response = update.Response
	}
	if update.ReplyMadeBy != nil {
		ticket.ReplyMadeBy = update.ReplyMadeBy
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.Tag != nil {
		ticket.Tag = *update.Tag
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	return &clone, nil
}

func (r *MemoryTicketRepository) ListByCreator(_ context.Context, userID int64, limit, offset int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.items {
		if ticket.CreatorID != nil && *ticket.CreatorID == userID {
			result = append(result, *ticket)
		}
	}
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryTicketRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

var _ TicketRepository = (*MemoryTicketRepository)(nil)

// MemoryWorkerProcessRepository is an in-memory append-only audit log.
type MemoryWorkerProcessRepository struct {
	mu      sync.Mutex
	nextID  int64
	records []domain.WorkerProcessRecord
}

// NewMemoryWorkerProcessRepository constructs an empty log.
func NewMemoryWorkerProcessRepository() *MemoryWorkerProcessRepository {
	return &MemoryWorkerProcessRepository{nextID: 1}
}

func (r *MemoryWorkerProcessRepository) Append(_ context.Context, record *domain.WorkerProcessRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = r.nextID
	r.nextID++
	record.CreatedAt = time.Now()
	r.records = append(r.records, *record)
	return nil
}

func (r *MemoryWorkerProcessRepository) ListByTicket(_ context.Context, ticketID int64, limit, offset int) ([]domain.WorkerProcessRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WorkerProcessRecord
	for _, record := range r.records {
		if record.TicketID == ticketID {
			result = append(result, record)
		}
	}
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ WorkerProcessRepository = (*MemoryWorkerProcessRepository)(nil)
