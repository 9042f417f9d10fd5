package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TicketUpdate describes an attribute-level partial write. Nil fields are
// left untouched so concurrent writers never clobber unrelated columns.
type TicketUpdate struct {
	Category       *domain.TicketCategory
	SentimentScore *int
	Urgency        *domain.TicketUrgency
	ResponseDraft  *string
	Response       *string
	ReplyMadeBy    *domain.ReplySource
	Status         *domain.TicketStatus
	Tag            *string
}

// IsEmpty reports whether the update carries no field changes.
func (u TicketUpdate) IsEmpty() bool {
	return u.Category == nil && u.SentimentScore == nil && u.Urgency == nil &&
		u.ResponseDraft == nil && u.Response == nil && u.ReplyMadeBy == nil &&
		u.Status == nil && u.Tag == nil
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	UpdateFields(ctx context.Context, id int64, update TicketUpdate) (*domain.Ticket, error)
	ListByCreator(ctx context.Context, userID int64, limit, offset int) ([]domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, creator_user_id, title, content, category, sentiment_score, urgency,
               response_draft, response, reply_made_by, status, tag, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (creator_user_id, title, content, status, tag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.CreatorID,
		ticket.Title,
		ticket.Content,
		ticket.Status,
		ticket.Tag,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateFields(ctx context.Context, id int64, update TicketUpdate) (*domain.Ticket, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.Category != nil {
		addSet("category", *update.Category)
	}
	if update.SentimentScore != nil {
		addSet("sentiment_score", *update.SentimentScore)
	}
	if update.Urgency != nil {
		addSet("urgency", *update.Urgency)
	}
	if update.ResponseDraft != nil {
		addSet("response_draft", *update.ResponseDraft)
	}
	if update.Response != nil {
		addSet("response", *update.Response)
	}
	if update.ReplyMadeBy != nil {
		addSet("reply_made_by", *update.ReplyMadeBy)
	}
	if update.Status != nil {
		addSet("status", *update.Status)
	}
	if update.Tag != nil {
		addSet("tag", *update.Tag)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByCreator(ctx context.Context, userID int64, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE creator_user_id=$1
        ORDER BY updated_at DESC LIMIT %d OFFSET %d`, ticketColumns, limit, offset)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketScanTargets(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func ticketScanTargets(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.CreatorID,
		&ticket.Title,
		&ticket.Content,
		&ticket.Category,
		&ticket.SentimentScore,
		&ticket.Urgency,
		&ticket.ResponseDraft,
		&ticket.Response,
		&ticket.ReplyMadeBy,
		&ticket.Status,
		&ticket.Tag,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	}
}
