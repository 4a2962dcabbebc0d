package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers. The value doubles as the
// broker routing key.
type EventType string

const (
	EventTicketCreated         EventType = "ticket.created"
	EventTicketStatusChanged   EventType = "ticket.status_changed"
	EventTicketApproved        EventType = "ticket.approved"
	EventTicketRejected        EventType = "ticket.rejected"
	EventPrioritizationApplied EventType = "automation.prioritization_applied"
	EventAssignmentApplied     EventType = "automation.assignment_applied"
	EventEscalationTriggered   EventType = "automation.escalation_triggered"
	EventSLAWarning            EventType = "sla.warning"
	EventSLABreach             EventType = "sla.breach"
	EventSLABreachAcknowledged EventType = "sla.breach_acknowledged"
)

// AllEventTypes lists every event the core emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketApproved,
	EventTicketRejected,
	EventPrioritizationApplied,
	EventAssignmentApplied,
	EventEscalationTriggered,
	EventSLAWarning,
	EventSLABreach,
	EventSLABreachAcknowledged,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ActorType `json:"type"`
	StaffID *string          `json:"staff_id,omitempty"`
	UserID  *string          `json:"user_id,omitempty"`
}

// SystemActor is used for automation and scheduler driven events.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketID     string      `json:"ticket_id"`
	TicketNumber string      `json:"ticket_number"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketDecisionPayload is carried by approved and rejected events.
type TicketDecisionPayload struct {
	StageIndex int                 `json:"stage_index"`
	StageName  string              `json:"stage_name"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	Comment    string              `json:"comment,omitempty"`
}

// PrioritizationAppliedPayload payload.
type PrioritizationAppliedPayload struct {
	RuleName    string                `json:"rule_name"`
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// AssignmentAppliedPayload payload.
type AssignmentAppliedPayload struct {
	RuleName    string           `json:"rule_name"`
	Role        domain.StaffRole `json:"role"`
	AssigneeID  *string          `json:"assignee_id,omitempty"`
	OldAssignee *string          `json:"old_assignee_id,omitempty"`
}

// EscalationTriggeredPayload payload.
type EscalationTriggeredPayload struct {
	RuleName       string                 `json:"rule_name"`
	EscalateToRole *domain.StaffRole      `json:"escalate_to_role,omitempty"`
	OldPriority    domain.TicketPriority  `json:"old_priority"`
	NewPriority    *domain.TicketPriority `json:"new_priority,omitempty"`
	AssigneeID     *string                `json:"assignee_id,omitempty"`
}

// SLAWarningPayload payload.
type SLAWarningPayload struct {
	MetricID    string            `json:"metric_id"`
	BreachType  domain.BreachType `json:"breach_type"`
	ElapsedMins int               `json:"elapsed_mins"`
	TargetMins  int               `json:"target_mins"`
}

// SLABreachPayload payload.
type SLABreachPayload struct {
	BreachID    string            `json:"breach_id"`
	MetricID    string            `json:"metric_id"`
	BreachType  domain.BreachType `json:"breach_type"`
	ActualMins  int               `json:"actual_mins"`
	TargetMins  int               `json:"target_mins"`
	OverageMins int               `json:"overage_mins"`
}

// SLABreachAcknowledgedPayload payload.
type SLABreachAcknowledgedPayload struct {
	BreachID        string            `json:"breach_id"`
	BreachType      domain.BreachType `json:"breach_type"`
	ResolutionNotes string            `json:"resolution_notes"`
}
