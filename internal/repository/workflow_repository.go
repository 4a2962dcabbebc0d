package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// WorkflowRepository stores approval workflows. Stages are kept as a JSON
// array and are never modified after creation.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *domain.Workflow) error
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	List(ctx context.Context) ([]domain.Workflow, error)
}

type workflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository builds repository.
func NewWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{pool: pool}
}

func (r *workflowRepository) Create(ctx context.Context, workflow *domain.Workflow) error {
	const query = `
        INSERT INTO workflows (id, name, stages, created_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.pool.Exec(ctx, query, workflow.ID, workflow.Name, workflow.Stages, workflow.CreatedAt)
	return err
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	const query = `SELECT id, name, stages, created_at FROM workflows WHERE id=$1`
	workflow, err := scanWorkflow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return workflow, nil
}

func (r *workflowRepository) List(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stages, created_at FROM workflows ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *workflow)
	}
	return result, rows.Err()
}

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var workflow domain.Workflow
	if err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Stages, &workflow.CreatedAt); err != nil {
		return nil, err
	}
	return &workflow, nil
}
