package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RuleRepository stores automation rules. List methods return active rules in
// ascending order, ties broken by id.
type RuleRepository interface {
	CreateAssignmentRule(ctx context.Context, rule *domain.AssignmentRule) error
	ListAssignmentRules(ctx context.Context) ([]domain.AssignmentRule, error)
	CreatePrioritizationRule(ctx context.Context, rule *domain.PrioritizationRule) error
	ListPrioritizationRules(ctx context.Context) ([]domain.PrioritizationRule, error)
	CreateEscalationRule(ctx context.Context, rule *domain.EscalationRule) error
	ListEscalationRules(ctx context.Context) ([]domain.EscalationRule, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository builds repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

func (r *ruleRepository) CreateAssignmentRule(ctx context.Context, rule *domain.AssignmentRule) error {
	const query = `
        INSERT INTO assignment_rules (id, name, category, role, method, sort_order, is_active, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Name, rule.Category, rule.Role, rule.Method, rule.Order, rule.IsActive, rule.CreatedAt)
	return err
}

func (r *ruleRepository) ListAssignmentRules(ctx context.Context) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, category, role, method, sort_order, is_active, created_at
        FROM assignment_rules WHERE is_active ORDER BY sort_order ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var rule domain.AssignmentRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Category, &rule.Role, &rule.Method,
			&rule.Order, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *ruleRepository) CreatePrioritizationRule(ctx context.Context, rule *domain.PrioritizationRule) error {
	const query = `
        INSERT INTO prioritization_rules (id, name, keyword, priority, sort_order, is_active, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Name, rule.Keyword, rule.Priority, rule.Order, rule.IsActive, rule.CreatedAt)
	return err
}

func (r *ruleRepository) ListPrioritizationRules(ctx context.Context) ([]domain.PrioritizationRule, error) {
	const query = `
        SELECT id, name, keyword, priority, sort_order, is_active, created_at
        FROM prioritization_rules WHERE is_active ORDER BY sort_order ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PrioritizationRule
	for rows.Next() {
		var rule domain.PrioritizationRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Keyword, &rule.Priority,
			&rule.Order, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *ruleRepository) CreateEscalationRule(ctx context.Context, rule *domain.EscalationRule) error {
	const query = `
        INSERT INTO escalation_rules (id, name, priority, status, hours, escalate_to_role, new_priority, sort_order, is_active, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Name, rule.Priority, rule.Status, rule.Hours, rule.EscalateToRole, rule.NewPriority,
		rule.Order, rule.IsActive, rule.CreatedAt)
	return err
}

func (r *ruleRepository) ListEscalationRules(ctx context.Context) ([]domain.EscalationRule, error) {
	const query = `
        SELECT id, name, priority, status, hours, escalate_to_role, new_priority, sort_order, is_active, created_at
        FROM escalation_rules WHERE is_active ORDER BY sort_order ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationRule
	for rows.Next() {
		var rule domain.EscalationRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Priority, &rule.Status, &rule.Hours,
			&rule.EscalateToRole, &rule.NewPriority, &rule.Order, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
