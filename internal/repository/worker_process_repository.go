package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// WorkerProcessRepository persists the append-only triage audit trail.
// Records are inserted once and never updated or deleted.
type WorkerProcessRepository interface {
	Append(ctx context.Context, record *domain.WorkerProcessRecord) error
	ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.WorkerProcessRecord, error)
}

type workerProcessRepository struct {
	pool *pgxpool.Pool
}

// NewWorkerProcessRepository instantiates repository.
func NewWorkerProcessRepository(pool *pgxpool.Pool) WorkerProcessRepository {
	return &workerProcessRepository{pool: pool}
}

func (r *workerProcessRepository) Append(ctx context.Context, record *domain.WorkerProcessRecord) error {
	const query = `
        INSERT INTO worker_process_records (worker_id, ticket_id, status, reply_text, raw_model_output, error_message)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.WorkerID,
		record.TicketID,
		record.Status,
		record.ReplyText,
		record.RawModelOutput,
		record.ErrorMessage,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *workerProcessRepository) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.WorkerProcessRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, worker_id, ticket_id, status, reply_text, raw_model_output, error_message, created_at
        FROM worker_process_records WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkerProcessRecord
	for rows.Next() {
		var record domain.WorkerProcessRecord
		if err := rows.Scan(
			&record.ID,
			&record.WorkerID,
			&record.TicketID,
			&record.Status,
			&record.ReplyText,
			&record.RawModelOutput,
			&record.ErrorMessage,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
