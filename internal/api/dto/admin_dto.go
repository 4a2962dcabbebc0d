package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateWorkflowRequest payload.
type CreateWorkflowRequest struct {
	Name   string                 `json:"name"`
	Stages []domain.WorkflowStage `json:"stages"`
}

// WorkflowResponse represents a workflow.
type WorkflowResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Stages    []domain.WorkflowStage `json:"stages"`
	CreatedAt time.Time              `json:"created_at"`
}

// CreateStaffRequest payload.
type CreateStaffRequest struct {
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  domain.StaffRole `json:"role"`
}

// StaffResponse represents a staff member.
type StaffResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.StaffRole `json:"role"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
}

// AuthResponse standard response for token endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAssignmentRuleRequest payload.
type CreateAssignmentRuleRequest struct {
	Name     string                  `json:"name"`
	Category string                  `json:"category"`
	Role     domain.StaffRole        `json:"role"`
	Method   domain.AssignmentMethod `json:"method"`
	Order    int                     `json:"order"`
}

// CreatePrioritizationRuleRequest payload.
type CreatePrioritizationRuleRequest struct {
	Name     string                `json:"name"`
	Keyword  string                `json:"keyword"`
	Priority domain.TicketPriority `json:"priority"`
	Order    int                   `json:"order"`
}

// CreateEscalationRuleRequest payload.
type CreateEscalationRuleRequest struct {
	Name           string                 `json:"name"`
	Priority       domain.TicketPriority  `json:"priority"`
	Status         domain.TicketStatus    `json:"status"`
	Hours          float64                `json:"hours"`
	EscalateToRole domain.StaffRole       `json:"escalate_to_role"`
	NewPriority    *domain.TicketPriority `json:"new_priority"`
	Order          int                    `json:"order"`
}

// AssignmentRuleResponse represents an assignment rule.
type AssignmentRuleResponse struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Category  string                  `json:"category"`
	Role      domain.StaffRole        `json:"role"`
	Method    domain.AssignmentMethod `json:"method"`
	Order     int                     `json:"order"`
	IsActive  bool                    `json:"is_active"`
	CreatedAt time.Time               `json:"created_at"`
}

// PrioritizationRuleResponse represents a prioritization rule.
type PrioritizationRuleResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Keyword   string                `json:"keyword"`
	Priority  domain.TicketPriority `json:"priority"`
	Order     int                   `json:"order"`
	IsActive  bool                  `json:"is_active"`
	CreatedAt time.Time             `json:"created_at"`
}

// EscalationRuleResponse represents an escalation rule.
type EscalationRuleResponse struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Priority       domain.TicketPriority  `json:"priority"`
	Status         domain.TicketStatus    `json:"status"`
	Hours          float64                `json:"hours"`
	EscalateToRole domain.StaffRole       `json:"escalate_to_role"`
	NewPriority    *domain.TicketPriority `json:"new_priority"`
	Order          int                    `json:"order"`
	IsActive       bool                   `json:"is_active"`
	CreatedAt      time.Time              `json:"created_at"`
}
