package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// RuleRepository stores automation rules in memory.
type RuleRepository struct {
	mu             sync.RWMutex
	assignment     []domain.AssignmentRule
	prioritization []domain.PrioritizationRule
	escalation     []domain.EscalationRule
}

// NewRuleRepository builds an empty store.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{}
}

var _ repository.RuleRepository = (*RuleRepository)(nil)

// CreateAssignmentRule implements repository.RuleRepository.
func (r *RuleRepository) CreateAssignmentRule(_ context.Context, rule *domain.AssignmentRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignment = append(r.assignment, *rule)
	return nil
}

// ListAssignmentRules implements repository.RuleRepository.
func (r *RuleRepository) ListAssignmentRules(_ context.Context) ([]domain.AssignmentRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AssignmentRule
	for _, rule := range r.assignment {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return ordered(out[i].Order, out[i].ID, out[j].Order, out[j].ID) })
	return out, nil
}

// CreatePrioritizationRule implements repository.RuleRepository.
func (r *RuleRepository) CreatePrioritizationRule(_ context.Context, rule *domain.PrioritizationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prioritization = append(r.prioritization, *rule)
	return nil
}

// ListPrioritizationRules implements repository.RuleRepository.
func (r *RuleRepository) ListPrioritizationRules(_ context.Context) ([]domain.PrioritizationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PrioritizationRule
	for _, rule := range r.prioritization {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return ordered(out[i].Order, out[i].ID, out[j].Order, out[j].ID) })
	return out, nil
}

// CreateEscalationRule implements repository.RuleRepository.
func (r *RuleRepository) CreateEscalationRule(_ context.Context, rule *domain.EscalationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rule
	if rule.NewPriority != nil {
		p := *rule.NewPriority
		stored.NewPriority = &p
	}
	r.escalation = append(r.escalation, stored)
	return nil
}

// ListEscalationRules implements repository.RuleRepository.
func (r *RuleRepository) ListEscalationRules(_ context.Context) ([]domain.EscalationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.EscalationRule
	for _, rule := range r.escalation {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return ordered(out[i].Order, out[i].ID, out[j].Order, out[j].ID) })
	return out, nil
}

func ordered(orderA int, idA string, orderB int, idB string) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	return idA < idB
}

// RoundRobinRepository keeps per-role cursors in process memory.
type RoundRobinRepository struct {
	mu      sync.Mutex
	cursors map[domain.StaffRole]int64
}

// NewRoundRobinRepository builds an empty cursor table.
func NewRoundRobinRepository() *RoundRobinRepository {
	return &RoundRobinRepository{cursors: make(map[domain.StaffRole]int64)}
}

// Get implements repository.RoundRobinRepository.
func (r *RoundRobinRepository) Get(_ context.Context, role domain.StaffRole) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursors[role], nil
}

// Advance implements repository.RoundRobinRepository.
func (r *RoundRobinRepository) Advance(_ context.Context, role domain.StaffRole) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[role]++
	return r.cursors[role], nil
}
