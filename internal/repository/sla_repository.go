package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SLAPolicyRepository stores SLA policies.
type SLAPolicyRepository interface {
	Create(ctx context.Context, policy *domain.SLAPolicy) error
	GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error)
	List(ctx context.Context, activeOnly bool) ([]domain.SLAPolicy, error)
}

// SLAMetricRepository stores per-ticket SLA metrics. GetOrCreate is keyed by
// (ticket, policy) and reports whether the row was created. GetByTicket returns
// the ticket's open metric, or the newest one once all are finalized. Update
// performs an optimistic check against Version.
type SLAMetricRepository interface {
	GetOrCreate(ctx context.Context, metric *domain.SLAMetric) (*domain.SLAMetric, bool, error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.SLAMetric, error)
	Update(ctx context.Context, metric *domain.SLAMetric) error
	ListActive(ctx context.Context, afterID string, limit int) ([]domain.SLAMetric, error)
}

// BreachFilter narrows breach listings.
type BreachFilter struct {
	TicketID *string
	MetricID *string
	Statuses []domain.BreachStatus
	Limit    int
	Offset   int
}

// SLABreachRepository stores breaches. Create returns ErrBreachExists when the
// (metric, type) pair is already recorded.
type SLABreachRepository interface {
	Create(ctx context.Context, breach *domain.SLABreach) error
	Find(ctx context.Context, metricID string, breachType domain.BreachType) (*domain.SLABreach, error)
	GetByID(ctx context.Context, id string) (*domain.SLABreach, error)
	Update(ctx context.Context, breach *domain.SLABreach) error
	List(ctx context.Context, filter BreachFilter) ([]domain.SLABreach, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const policyColumns = `id, name, category, priority, workflow_id, response_time_mins, resolution_time_mins,
        approval_time_mins, warning_threshold, is_active, created_at, updated_at`

func (r *slaPolicyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) error {
	query := `INSERT INTO sla_policies (` + policyColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.pool.Exec(ctx, query,
		policy.ID,
		policy.Name,
		policy.Category,
		policy.Priority,
		policy.WorkflowID,
		policy.ResponseTimeMins,
		policy.ResolutionTimeMins,
		policy.ApprovalTimeMins,
		policy.WarningThreshold,
		policy.IsActive,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	return err
}

func (r *slaPolicyRepository) GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	policy, err := scanPolicy(r.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM sla_policies WHERE id=$1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return policy, nil
}

func (r *slaPolicyRepository) List(ctx context.Context, activeOnly bool) ([]domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	if err := row.Scan(
		&policy.ID,
		&policy.Name,
		&policy.Category,
		&policy.Priority,
		&policy.WorkflowID,
		&policy.ResponseTimeMins,
		&policy.ResolutionTimeMins,
		&policy.ApprovalTimeMins,
		&policy.WarningThreshold,
		&policy.IsActive,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

type slaMetricRepository struct {
	pool *pgxpool.Pool
}

// NewSLAMetricRepository builds repository.
func NewSLAMetricRepository(pool *pgxpool.Pool) SLAMetricRepository {
	return &slaMetricRepository{pool: pool}
}

const metricColumns = `id, ticket_id, policy_id, ticket_created_at, first_response_at, resolved_at,
        approval_completed_at, response_time_mins, resolution_time_mins, approval_time_mins,
        target_response_time_mins, target_resolution_time_mins, target_approval_time_mins, warning_threshold,
        response_status, resolution_status, approval_status, status, finalized_at, version, created_at, updated_at`

func (r *slaMetricRepository) GetOrCreate(ctx context.Context, metric *domain.SLAMetric) (*domain.SLAMetric, bool, error) {
	query := `INSERT INTO sla_metrics (` + metricColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,1,$20,$20)
        ON CONFLICT (ticket_id, policy_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		metric.ID,
		metric.TicketID,
		metric.PolicyID,
		metric.TicketCreatedAt,
		metric.FirstResponseAt,
		metric.ResolvedAt,
		metric.ApprovalCompletedAt,
		metric.ResponseTimeMins,
		metric.ResolutionTimeMins,
		metric.ApprovalTimeMins,
		metric.TargetResponseTimeMins,
		metric.TargetResolutionTimeMins,
		metric.TargetApprovalTimeMins,
		metric.WarningThreshold,
		metric.ResponseStatus,
		metric.ResolutionStatus,
		metric.ApprovalStatus,
		metric.Status,
		metric.FinalizedAt,
		metric.CreatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	stored, err := scanMetric(r.pool.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM sla_metrics WHERE ticket_id=$1 AND policy_id=$2`,
		metric.TicketID, metric.PolicyID))
	if err != nil {
		return nil, false, mapNoRows(err)
	}
	return stored, cmd.RowsAffected() == 1, nil
}

func (r *slaMetricRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.SLAMetric, error) {
	query := `SELECT ` + metricColumns + ` FROM sla_metrics WHERE ticket_id=$1
        ORDER BY finalized_at IS NULL DESC, created_at DESC, finalized_at DESC, id DESC LIMIT 1`
	metric, err := scanMetric(r.pool.QueryRow(ctx, query, ticketID))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return metric, nil
}

func (r *slaMetricRepository) Update(ctx context.Context, metric *domain.SLAMetric) error {
	const query = `
        UPDATE sla_metrics SET first_response_at=$1, resolved_at=$2, approval_completed_at=$3,
            response_time_mins=$4, resolution_time_mins=$5, approval_time_mins=$6,
            response_status=$7, resolution_status=$8, approval_status=$9, status=$10, finalized_at=$11,
            version=version+1, updated_at=$12
        WHERE id=$13 AND version=$14
        RETURNING version`
	err := r.pool.QueryRow(ctx, query,
		metric.FirstResponseAt,
		metric.ResolvedAt,
		metric.ApprovalCompletedAt,
		metric.ResponseTimeMins,
		metric.ResolutionTimeMins,
		metric.ApprovalTimeMins,
		metric.ResponseStatus,
		metric.ResolutionStatus,
		metric.ApprovalStatus,
		metric.Status,
		metric.FinalizedAt,
		metric.UpdatedAt,
		metric.ID,
		metric.Version,
	).Scan(&metric.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func (r *slaMetricRepository) ListActive(ctx context.Context, afterID string, limit int) ([]domain.SLAMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + metricColumns + ` FROM sla_metrics
        WHERE finalized_at IS NULL AND id > $1 ORDER BY id ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAMetric
	for rows.Next() {
		metric, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *metric)
	}
	return result, rows.Err()
}

func scanMetric(row pgx.Row) (*domain.SLAMetric, error) {
	var m domain.SLAMetric
	if err := row.Scan(
		&m.ID,
		&m.TicketID,
		&m.PolicyID,
		&m.TicketCreatedAt,
		&m.FirstResponseAt,
		&m.ResolvedAt,
		&m.ApprovalCompletedAt,
		&m.ResponseTimeMins,
		&m.ResolutionTimeMins,
		&m.ApprovalTimeMins,
		&m.TargetResponseTimeMins,
		&m.TargetResolutionTimeMins,
		&m.TargetApprovalTimeMins,
		&m.WarningThreshold,
		&m.ResponseStatus,
		&m.ResolutionStatus,
		&m.ApprovalStatus,
		&m.Status,
		&m.FinalizedAt,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

type slaBreachRepository struct {
	pool *pgxpool.Pool
}

// NewSLABreachRepository builds repository.
func NewSLABreachRepository(pool *pgxpool.Pool) SLABreachRepository {
	return &slaBreachRepository{pool: pool}
}

const breachColumns = `id, metric_id, ticket_id, breach_type, actual_mins, target_mins, overage_mins, status,
        acknowledged_at, acknowledged_by, resolution_notes, created_at`

func (r *slaBreachRepository) Create(ctx context.Context, breach *domain.SLABreach) error {
	query := `INSERT INTO sla_breaches (` + breachColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (metric_id, breach_type) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		breach.ID,
		breach.MetricID,
		breach.TicketID,
		breach.BreachType,
		breach.ActualMins,
		breach.TargetMins,
		breach.OverageMins,
		breach.Status,
		breach.AcknowledgedAt,
		breach.AcknowledgedBy,
		breach.ResolutionNotes,
		breach.CreatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBreachExists
	}
	return nil
}

func (r *slaBreachRepository) Find(ctx context.Context, metricID string, breachType domain.BreachType) (*domain.SLABreach, error) {
	query := `SELECT ` + breachColumns + ` FROM sla_breaches WHERE metric_id=$1 AND breach_type=$2`
	breach, err := scanBreach(r.pool.QueryRow(ctx, query, metricID, breachType))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return breach, nil
}

func (r *slaBreachRepository) GetByID(ctx context.Context, id string) (*domain.SLABreach, error) {
	breach, err := scanBreach(r.pool.QueryRow(ctx, `SELECT `+breachColumns+` FROM sla_breaches WHERE id=$1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return breach, nil
}

// Update only persists the acknowledgment fields; the measured values of a
// breach are immutable.
func (r *slaBreachRepository) Update(ctx context.Context, breach *domain.SLABreach) error {
	const query = `
        UPDATE sla_breaches SET status=$1, acknowledged_at=$2, acknowledged_by=$3, resolution_notes=$4
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		breach.Status,
		breach.AcknowledgedAt,
		breach.AcknowledgedBy,
		breach.ResolutionNotes,
		breach.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *slaBreachRepository) List(ctx context.Context, filter BreachFilter) ([]domain.SLABreach, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.MetricID != nil {
		args = append(args, *filter.MetricID)
		clauses = append(clauses, fmt.Sprintf("metric_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	limit, offset := clampPage(filter.Limit, filter.Offset, 50)
	query := fmt.Sprintf(`SELECT %s FROM sla_breaches WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		breachColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLABreach
	for rows.Next() {
		breach, err := scanBreach(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *breach)
	}
	return result, rows.Err()
}

func scanBreach(row pgx.Row) (*domain.SLABreach, error) {
	var b domain.SLABreach
	if err := row.Scan(
		&b.ID,
		&b.MetricID,
		&b.TicketID,
		&b.BreachType,
		&b.ActualMins,
		&b.TargetMins,
		&b.OverageMins,
		&b.Status,
		&b.AcknowledgedAt,
		&b.AcknowledgedBy,
		&b.ResolutionNotes,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
