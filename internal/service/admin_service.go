package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AdminService manages workflows, automation rules and staff members.
type AdminService struct {
	workflows repository.WorkflowRepository
	rules     repository.RuleRepository
	staff     repository.StaffRepository
	adminRole domain.StaffRole
	logger    *zap.Logger
	now       func() time.Time
}

// AdminDependencies encapsulates repositories required for administration.
type AdminDependencies struct {
	WorkflowRepo repository.WorkflowRepository
	RuleRepo     repository.RuleRepository
	StaffRepo    repository.StaffRepository
	AdminRole    domain.StaffRole
	Logger       *zap.Logger
	Now          func() time.Time
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

// AssignmentRuleInput describes a new assignment rule.
type AssignmentRuleInput struct {
	Name     string
	Category string
	Role     domain.StaffRole
	Method   domain.AssignmentMethod
	Order    int
}

// PrioritizationRuleInput describes a new prioritization rule.
type PrioritizationRuleInput struct {
	Name     string
	Keyword  string
	Priority domain.TicketPriority
	Order    int
}

// EscalationRuleInput describes a new escalation rule.
type EscalationRuleInput struct {
	Name           string
	Priority       domain.TicketPriority
	Status         domain.TicketStatus
	Hours          float64
	EscalateToRole domain.StaffRole
	NewPriority    *domain.TicketPriority
	Order          int
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	adminRole := deps.AdminRole
	if adminRole == "" {
		adminRole = domain.StaffRoleAdmin
	}
	return &AdminService{
		workflows: deps.WorkflowRepo,
		rules:     deps.RuleRepo,
		staff:     deps.StaffRepo,
		adminRole: adminRole,
		logger:    nopIfNil(deps.Logger),
		now:       clockOrDefault(deps.Now),
	}
}

func (s *AdminService) requireAdmin(actor Actor) error {
	if actor.Type != domain.ActorTypeStaff || actor.Role != s.adminRole {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateWorkflow stores a workflow with its ordered stages.
func (s *AdminService) CreateWorkflow(ctx context.Context, actor Actor, name string, stages []domain.WorkflowStage) (*domain.Workflow, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("workflow name is required", nil)
	}
	if len(stages) == 0 {
		return nil, apperrors.NewValidationError("workflow needs at least one stage", nil)
	}
	cleaned := make([]domain.WorkflowStage, 0, len(stages))
	for i, stage := range stages {
		stage.Name = strings.TrimSpace(stage.Name)
		if stage.Name == "" || strings.TrimSpace(string(stage.ApproverRole)) == "" {
			return nil, apperrors.NewValidationError("stage requires name and approver role", map[string]any{"stage_index": i})
		}
		cleaned = append(cleaned, stage)
	}
	wf := &domain.Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		Stages:    cleaned,
		CreatedAt: s.now(),
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, mapRepoError(err, "workflow", nil)
	}
	return wf, nil
}

// GetWorkflow fetches a workflow.
func (s *AdminService) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "workflow", map[string]any{"workflow_id": id})
	}
	return wf, nil
}

// ListWorkflows returns all workflows.
func (s *AdminService) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return workflows, nil
}

// CreateAssignmentRule stores an active assignment rule.
func (s *AdminService) CreateAssignmentRule(ctx context.Context, actor Actor, input AssignmentRuleInput) (*domain.AssignmentRule, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Category) == "" || input.Role == "" {
		return nil, apperrors.NewValidationError("name, category and role are required", nil)
	}
	method := input.Method
	if method == "" {
		method = domain.AssignmentMethodRoundRobin
	}
	if method != domain.AssignmentMethodRoundRobin {
		return nil, apperrors.NewValidationError("unsupported assignment method", map[string]any{"method": method})
	}
	rule := &domain.AssignmentRule{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Category:  strings.TrimSpace(input.Category),
		Role:      input.Role,
		Method:    method,
		Order:     input.Order,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.rules.CreateAssignmentRule(ctx, rule); err != nil {
		return nil, mapRepoError(err, "assignment rule", nil)
	}
	return rule, nil
}

// CreatePrioritizationRule stores an active prioritization rule.
func (s *AdminService) CreatePrioritizationRule(ctx context.Context, actor Actor, input PrioritizationRuleInput) (*domain.PrioritizationRule, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Keyword) == "" {
		return nil, apperrors.NewValidationError("name and keyword are required", nil)
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	rule := &domain.PrioritizationRule{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Keyword:   strings.TrimSpace(input.Keyword),
		Priority:  input.Priority,
		Order:     input.Order,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.rules.CreatePrioritizationRule(ctx, rule); err != nil {
		return nil, mapRepoError(err, "prioritization rule", nil)
	}
	return rule, nil
}

// CreateEscalationRule stores an active escalation rule.
func (s *AdminService) CreateEscalationRule(ctx context.Context, actor Actor, input EscalationRuleInput) (*domain.EscalationRule, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" || input.Status == "" {
		return nil, apperrors.NewValidationError("name and status are required", nil)
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.NewPriority != nil && !input.NewPriority.Valid() {
		return nil, apperrors.NewValidationError("unknown new priority", map[string]any{"new_priority": *input.NewPriority})
	}
	if input.Hours < 0 {
		return nil, apperrors.NewValidationError("hours must not be negative", map[string]any{"hours": input.Hours})
	}
	if input.EscalateToRole == "" && input.NewPriority == nil {
		return nil, apperrors.NewValidationError("rule must escalate role or priority", nil)
	}
	rule := &domain.EscalationRule{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(input.Name),
		Priority:       input.Priority,
		Status:         input.Status,
		Hours:          input.Hours,
		EscalateToRole: input.EscalateToRole,
		NewPriority:    input.NewPriority,
		Order:          input.Order,
		IsActive:       true,
		CreatedAt:      s.now(),
	}
	if err := s.rules.CreateEscalationRule(ctx, rule); err != nil {
		return nil, mapRepoError(err, "escalation rule", nil)
	}
	return rule, nil
}

// CreateStaffMember registers a staff account.
func (s *AdminService) CreateStaffMember(ctx context.Context, actor Actor, name, email string, role domain.StaffRole) (*domain.StaffMember, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.createStaff(ctx, name, email, role)
}

func (s *AdminService) createStaff(ctx context.Context, name, email string, role domain.StaffRole) (*domain.StaffMember, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || strings.TrimSpace(string(role)) == "" {
		return nil, apperrors.NewValidationError("name, email and role are required", nil)
	}
	now := s.now()
	staff := &domain.StaffMember{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// ListStaffMembers lists staff with filters.
func (s *AdminService) ListStaffMembers(ctx context.Context, actor Actor, filters StaffListFilters) ([]domain.StaffMember, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	staff, err := s.staff.List(ctx, repository.StaffFilter{
		Role:   filters.Role,
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// GetStaffMember fetches a staff member.
func (s *AdminService) GetStaffMember(ctx context.Context, id string) (*domain.StaffMember, error) {
	staff, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"staff_id": id})
	}
	return staff, nil
}

// EnsureBootstrapAdmin creates an admin with email when the staff store is
// empty. It returns nil when staff already exist.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, email string) (*domain.StaffMember, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	existing, err := s.staff.List(ctx, repository.StaffFilter{Limit: 1})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(existing) > 0 {
		return nil, nil
	}
	staff, err := s.createStaff(ctx, "Administrator", email, s.adminRole)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin created", zap.String("staff_id", staff.ID), zap.String("email", staff.Email))
	return staff, nil
}
