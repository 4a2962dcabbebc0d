package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketMessageRepository manages ticket thread messages. ListByTicket returns
// the thread oldest first; internal notes are left out unless includeInternal.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO ticket_messages (id, ticket_id, author_type, author_id, message_type, body, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		msg.ID, msg.TicketID, msg.AuthorType, msg.AuthorID, msg.MessageType, msg.Body, msg.CreatedAt)
	return err
}

// Column order matches domain.TicketMessage field order for RowToStructByPos.
func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, author_type, author_id, message_type, body, created_at
        FROM ticket_messages
        WHERE ticket_id = $1 AND ($2 OR message_type <> $3)
        ORDER BY created_at ASC, id ASC`,
		ticketID, includeInternal, domain.MessageTypeInternalNote)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketMessage])
}
