package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures search parameters for ticket listings.
type TicketFilter struct {
	RequesterID *string
	AssigneeID  *string
	WorkflowID  *string
	Category    *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence. Update performs an
// optimistic check against Version and increments it on success.
//
// The WithHistory variants write the ticket and append entry as one unit: if
// either write fails neither is kept and the ticket argument is left as it
// was passed in.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	CreateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error
	UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, requester_id, title, description, category, priority, status, workflow_id,
        current_stage_index, assignee_id, assignee_role, due_date, status_changed_at, version,
        created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return insertTicket(ctx, r.pool, ticket)
}

func (r *ticketRepository) CreateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	version, updatedAt := ticket.Version, ticket.UpdatedAt
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertTicket(ctx, tx, ticket); err != nil {
			return err
		}
		return insertHistory(ctx, tx, entry)
	})
	if err != nil {
		ticket.Version, ticket.UpdatedAt = version, updatedAt
	}
	return err
}

func (r *ticketRepository) UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	version, updatedAt := ticket.Version, ticket.UpdatedAt
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := updateTicket(ctx, tx, ticket); err != nil {
			return err
		}
		return insertHistory(ctx, tx, entry)
	})
	if err != nil {
		ticket.Version, ticket.UpdatedAt = version, updatedAt
	}
	return err
}

func insertTicket(ctx context.Context, q querier, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, number, requester_id, title, description, category, priority, status, workflow_id,
            current_stage_index, assignee_id, assignee_role, due_date, status_changed_at, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1,$15,$15)
        RETURNING version, updated_at`
	return q.QueryRow(ctx, query,
		ticket.ID,
		ticket.Number,
		ticket.RequesterID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.WorkflowID,
		ticket.CurrentStageIndex,
		ticket.AssigneeID,
		ticket.AssigneeRole,
		ticket.DueDate,
		ticket.StatusChangedAt,
		ticket.CreatedAt,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return updateTicket(ctx, r.pool, ticket)
}

func updateTicket(ctx context.Context, q querier, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, priority=$4, status=$5, workflow_id=$6,
            current_stage_index=$7, assignee_id=$8, assignee_role=$9, due_date=$10, status_changed_at=$11,
            closed_at=$12, version=version+1, updated_at=NOW()
        WHERE id=$13 AND version=$14
        RETURNING version, updated_at`
	err := q.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.WorkflowID,
		ticket.CurrentStageIndex,
		ticket.AssigneeID,
		ticket.AssigneeRole,
		ticket.DueDate,
		ticket.StatusChangedAt,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.WorkflowID != nil {
		args = append(args, *filter.WorkflowID)
		clauses = append(clauses, fmt.Sprintf("workflow_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := clampPage(filter.Limit, filter.Offset, 20)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.RequesterID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.WorkflowID,
		&ticket.CurrentStageIndex,
		&ticket.AssigneeID,
		&ticket.AssigneeRole,
		&ticket.DueDate,
		&ticket.StatusChangedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
