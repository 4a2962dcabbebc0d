package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketHistoryRepository is the append-only audit log keyed by ticket id.
// There is no update or delete.
type TicketHistoryRepository interface {
	Append(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, history *domain.TicketHistory) error {
	return insertHistory(ctx, r.pool, history)
}

func insertHistory(ctx context.Context, q querier, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, actor_type, actor_id, action, comment, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING seq`
	var seq int64
	return q.QueryRow(ctx, query,
		history.ID,
		history.TicketID,
		history.ActorType,
		history.ActorID,
		history.Action,
		history.Comment,
		history.OldValue,
		history.NewValue,
		history.CreatedAt,
	).Scan(&seq)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, actor_type, actor_id, action, comment, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ActorType,
			&history.ActorID,
			&history.Action,
			&history.Comment,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
