// Package workflow implements the ticket stage machine:
//
//	DRAFT -> IN_APPROVAL(stage 0..N-1) -> APPROVED | REJECTED
//	APPROVED -> IN_PROGRESS -> COMPLETED -> CLOSED
//
// Transitions only move forward. Transition is pure; the caller persists the
// result and appends history.
package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Action enumerates the operations accepted by the machine.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionClose    Action = "close"
)

// Request describes a transition attempt.
type Request struct {
	Action    Action
	ActorRole domain.StaffRole
	Workflow  *domain.Workflow
}

// Result is the outcome of a successful transition.
type Result struct {
	Action            Action
	FromStatus        domain.TicketStatus
	ToStatus          domain.TicketStatus
	FromStage         int
	ToStage           int
	WorkflowID        *string
	ApprovalCompleted bool
	HistoryAction     domain.TicketAction
}

// StatusChanged reports whether the ticket status moves.
func (r Result) StatusChanged() bool {
	return r.FromStatus != r.ToStatus
}

// Machine validates transitions. OverrideRole may approve or reject any stage.
type Machine struct {
	OverrideRole domain.StaffRole
}

// NewMachine builds a machine with the administrative override role.
func NewMachine(overrideRole domain.StaffRole) *Machine {
	if overrideRole == "" {
		overrideRole = domain.StaffRoleAdmin
	}
	return &Machine{OverrideRole: overrideRole}
}

var linearSteps = map[Action]struct {
	from domain.TicketStatus
	to   domain.TicketStatus
}{
	ActionStart:    {from: domain.TicketStatusApproved, to: domain.TicketStatusInProgress},
	ActionComplete: {from: domain.TicketStatusInProgress, to: domain.TicketStatusCompleted},
	ActionClose:    {from: domain.TicketStatusCompleted, to: domain.TicketStatusClosed},
}

// Transition computes the next state of ticket for req without mutating it.
func (m *Machine) Transition(ticket *domain.Ticket, req Request) (Result, error) {
	if ticket == nil {
		return Result{}, apperrors.NewNotFound("ticket", nil)
	}
	result := Result{
		Action:     req.Action,
		FromStatus: ticket.Status,
		ToStatus:   ticket.Status,
		FromStage:  ticket.CurrentStageIndex,
		ToStage:    ticket.CurrentStageIndex,
		WorkflowID: ticket.WorkflowID,
	}

	switch req.Action {
	case ActionSubmit:
		return m.submit(ticket, req, result)
	case ActionApprove, ActionReject:
		return m.decide(ticket, req, result)
	case ActionStart, ActionComplete, ActionClose:
		step := linearSteps[req.Action]
		if ticket.Status != step.from {
			return Result{}, invalidTransition(ticket, req.Action)
		}
		result.ToStatus = step.to
		result.HistoryAction = domain.ActionStatusChange
		return result, nil
	default:
		return Result{}, apperrors.NewValidationError("unknown workflow action", map[string]any{"action": req.Action})
	}
}

func (m *Machine) submit(ticket *domain.Ticket, req Request, result Result) (Result, error) {
	if ticket.Status != domain.TicketStatusDraft {
		return Result{}, invalidTransition(ticket, req.Action)
	}
	if strings.TrimSpace(ticket.Title) == "" || strings.TrimSpace(ticket.Description) == "" {
		return Result{}, apperrors.NewInvalidTransition("ticket requires title and description before submission",
			map[string]any{"ticket_id": ticket.ID})
	}
	if req.Workflow == nil {
		return Result{}, apperrors.NewNotFound("workflow", nil)
	}
	if req.Workflow.StageCount() == 0 {
		return Result{}, apperrors.NewInvalidTransition("workflow has no stages",
			map[string]any{"workflow_id": req.Workflow.ID})
	}
	workflowID := req.Workflow.ID
	result.WorkflowID = &workflowID
	result.ToStatus = domain.TicketStatusInApproval
	result.ToStage = 0
	result.HistoryAction = domain.ActionSubmitted
	return result, nil
}

func (m *Machine) decide(ticket *domain.Ticket, req Request, result Result) (Result, error) {
	if ticket.Status != domain.TicketStatusInApproval {
		return Result{}, invalidTransition(ticket, req.Action)
	}
	if req.Workflow == nil {
		return Result{}, apperrors.NewNotFound("workflow", nil)
	}
	stages := req.Workflow.StageCount()
	idx := ticket.CurrentStageIndex
	if idx < 0 || idx >= stages {
		return Result{}, apperrors.NewInvalidTransition("stage index outside workflow",
			map[string]any{"ticket_id": ticket.ID, "stage_index": idx, "stages": stages})
	}
	stage := req.Workflow.Stages[idx]
	if req.ActorRole != stage.ApproverRole && (m.OverrideRole == "" || req.ActorRole != m.OverrideRole) {
		return Result{}, apperrors.NewForbidden("actor role cannot act on stage " + stage.Name)
	}

	if req.Action == ActionReject {
		result.ToStatus = domain.TicketStatusRejected
		result.HistoryAction = domain.ActionRejected
		return result, nil
	}

	result.HistoryAction = domain.ActionApproved
	if idx == stages-1 {
		result.ToStatus = domain.TicketStatusApproved
		result.ApprovalCompleted = true
		return result, nil
	}
	result.ToStage = idx + 1
	return result, nil
}

// ApplyTo writes the result onto ticket.
func (r Result) ApplyTo(ticket *domain.Ticket, now time.Time) {
	ticket.Status = r.ToStatus
	ticket.CurrentStageIndex = r.ToStage
	ticket.WorkflowID = r.WorkflowID
	if r.StatusChanged() {
		ticket.StatusChangedAt = now
	}
	if r.ToStatus == domain.TicketStatusClosed {
		closedAt := now
		ticket.ClosedAt = &closedAt
	}
}

func invalidTransition(ticket *domain.Ticket, action Action) error {
	return apperrors.NewInvalidTransition("transition not allowed from current status", map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
		"action":    action,
	})
}
