package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateSLAPolicyRequest payload.
type CreateSLAPolicyRequest struct {
	Name               string                 `json:"name"`
	Category           *string                `json:"category"`
	Priority           *domain.TicketPriority `json:"priority"`
	WorkflowID         *string                `json:"workflow_id"`
	ResponseTimeMins   *int                   `json:"response_time_mins"`
	ResolutionTimeMins *int                   `json:"resolution_time_mins"`
	ApprovalTimeMins   *int                   `json:"approval_time_mins"`
	WarningThreshold   int                    `json:"warning_threshold"`
	IsActive           *bool                  `json:"is_active"`
}

// SLAPolicyResponse represents a policy.
type SLAPolicyResponse struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Category           *string                `json:"category"`
	Priority           *domain.TicketPriority `json:"priority"`
	WorkflowID         *string                `json:"workflow_id"`
	ResponseTimeMins   *int                   `json:"response_time_mins"`
	ResolutionTimeMins *int                   `json:"resolution_time_mins"`
	ApprovalTimeMins   *int                   `json:"approval_time_mins"`
	WarningThreshold   int                    `json:"warning_threshold"`
	IsActive           bool                   `json:"is_active"`
	CreatedAt          time.Time              `json:"created_at"`
}

// SLAMetricResponse represents the SLA state of a ticket.
type SLAMetricResponse struct {
	ID                       string           `json:"id"`
	TicketID                 string           `json:"ticket_id"`
	PolicyID                 string           `json:"policy_id"`
	TicketCreatedAt          time.Time        `json:"ticket_created_at"`
	FirstResponseAt          *time.Time       `json:"first_response_at"`
	ResolvedAt               *time.Time       `json:"resolved_at"`
	ApprovalCompletedAt      *time.Time       `json:"approval_completed_at"`
	ResponseTimeMins         *int             `json:"response_time_mins"`
	ResolutionTimeMins       *int             `json:"resolution_time_mins"`
	ApprovalTimeMins         *int             `json:"approval_time_mins"`
	TargetResponseTimeMins   *int             `json:"target_response_time_mins"`
	TargetResolutionTimeMins *int             `json:"target_resolution_time_mins"`
	TargetApprovalTimeMins   *int             `json:"target_approval_time_mins"`
	WarningThreshold         int              `json:"warning_threshold"`
	ResponseStatus           domain.SLAStatus `json:"response_status"`
	ResolutionStatus         domain.SLAStatus `json:"resolution_status"`
	ApprovalStatus           domain.SLAStatus `json:"approval_status"`
	Status                   domain.SLAStatus `json:"status"`
	FinalizedAt              *time.Time       `json:"finalized_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// SLABreachResponse represents a breach.
type SLABreachResponse struct {
	ID              string              `json:"id"`
	MetricID        string              `json:"metric_id"`
	TicketID        string              `json:"ticket_id"`
	BreachType      domain.BreachType   `json:"breach_type"`
	ActualMins      int                 `json:"actual_mins"`
	TargetMins      int                 `json:"target_mins"`
	OverageMins     int                 `json:"overage_mins"`
	Status          domain.BreachStatus `json:"status"`
	AcknowledgedAt  *time.Time          `json:"acknowledged_at"`
	AcknowledgedBy  *string             `json:"acknowledged_by"`
	ResolutionNotes string              `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// AcknowledgeBreachRequest payload.
type AcknowledgeBreachRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}
