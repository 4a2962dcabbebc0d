package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func threeStageWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID:   "wf-1",
		Name: "hardware purchase",
		Stages: []domain.WorkflowStage{
			{Name: "manager", ApproverRole: "Manager"},
			{Name: "finance", ApproverRole: "Finance"},
			{Name: "it", ApproverRole: "ITLead"},
		},
	}
}

func draftTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          "t-1",
		Title:       "New laptop",
		Description: "Current laptop is failing",
		Status:      domain.TicketStatusDraft,
	}
}

func TestThreeStageApprovalScenario(t *testing.T) {
	m := NewMachine(domain.StaffRoleAdmin)
	wf := threeStageWorkflow()
	ticket := draftTicket()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	res, err := m.Transition(ticket, Request{Action: ActionSubmit, Workflow: wf})
	require.NoError(t, err)
	res.ApplyTo(ticket, now)
	assert.Equal(t, domain.TicketStatusInApproval, ticket.Status)
	assert.Equal(t, 0, ticket.CurrentStageIndex)
	require.NotNil(t, ticket.WorkflowID)
	assert.Equal(t, "wf-1", *ticket.WorkflowID)

	for i, role := range []domain.StaffRole{"Manager", "Finance"} {
		res, err = m.Transition(ticket, Request{Action: ActionApprove, ActorRole: role, Workflow: wf})
		require.NoError(t, err)
		assert.False(t, res.ApprovalCompleted)
		res.ApplyTo(ticket, now)
		assert.Equal(t, i+1, ticket.CurrentStageIndex)
		assert.Equal(t, domain.TicketStatusInApproval, ticket.Status)
	}

	res, err = m.Transition(ticket, Request{Action: ActionApprove, ActorRole: "ITLead", Workflow: wf})
	require.NoError(t, err)
	assert.True(t, res.ApprovalCompleted)
	res.ApplyTo(ticket, now)
	assert.Equal(t, domain.TicketStatusApproved, ticket.Status)
	assert.Equal(t, 2, ticket.CurrentStageIndex)

	_, err = m.Transition(ticket, Request{Action: ActionApprove, ActorRole: "ITLead", Workflow: wf})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestApproveWithWrongRoleIsForbidden(t *testing.T) {
	m := NewMachine(domain.StaffRoleAdmin)
	wf := threeStageWorkflow()
	ticket := draftTicket()
	ticket.Status = domain.TicketStatusInApproval

	_, err := m.Transition(ticket, Request{Action: ActionApprove, ActorRole: "Finance", Workflow: wf})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	res, err := m.Transition(ticket, Request{Action: ActionApprove, ActorRole: domain.StaffRoleAdmin, Workflow: wf})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ToStage)
}

func TestRejectFreezesStage(t *testing.T) {
	m := NewMachine("")
	wf := threeStageWorkflow()
	ticket := draftTicket()
	ticket.Status = domain.TicketStatusInApproval
	ticket.CurrentStageIndex = 1

	res, err := m.Transition(ticket, Request{Action: ActionReject, ActorRole: "Finance", Workflow: wf})
	require.NoError(t, err)
	res.ApplyTo(ticket, time.Now())
	assert.Equal(t, domain.TicketStatusRejected, ticket.Status)
	assert.Equal(t, 1, ticket.CurrentStageIndex)
	assert.Equal(t, domain.ActionRejected, res.HistoryAction)

	for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionStart, ActionComplete, ActionClose} {
		_, err := m.Transition(ticket, Request{Action: action, ActorRole: domain.StaffRoleAdmin, Workflow: wf})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "action %s", action)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	m := NewMachine("")
	tests := []struct {
		name   string
		ticket *domain.Ticket
		wf     *domain.Workflow
		code   string
	}{
		{
			name:   "missing title",
			ticket: &domain.Ticket{Status: domain.TicketStatusDraft, Description: "x"},
			wf:     threeStageWorkflow(),
			code:   apperrors.CodeInvalidTransition,
		},
		{
			name:   "empty workflow",
			ticket: draftTicket(),
			wf:     &domain.Workflow{ID: "wf-empty"},
			code:   apperrors.CodeInvalidTransition,
		},
		{
			name:   "missing workflow",
			ticket: draftTicket(),
			wf:     nil,
			code:   apperrors.CodeNotFound,
		},
		{
			name:   "not draft",
			ticket: &domain.Ticket{Status: domain.TicketStatusApproved, Title: "a", Description: "b"},
			wf:     threeStageWorkflow(),
			code:   apperrors.CodeInvalidTransition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Transition(tt.ticket, Request{Action: ActionSubmit, Workflow: tt.wf})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLinearTransitionsAreForwardOnly(t *testing.T) {
	m := NewMachine("")
	ticket := draftTicket()
	ticket.Status = domain.TicketStatusApproved
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.Transition(ticket, Request{Action: ActionComplete})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	for _, step := range []struct {
		action Action
		want   domain.TicketStatus
	}{
		{ActionStart, domain.TicketStatusInProgress},
		{ActionComplete, domain.TicketStatusCompleted},
		{ActionClose, domain.TicketStatusClosed},
	} {
		res, err := m.Transition(ticket, Request{Action: step.action})
		require.NoError(t, err)
		res.ApplyTo(ticket, now)
		assert.Equal(t, step.want, ticket.Status)
		assert.Equal(t, now, ticket.StatusChangedAt)
	}
	require.NotNil(t, ticket.ClosedAt)

	_, err = m.Transition(ticket, Request{Action: ActionStart})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestStageIndexNeverDecreases(t *testing.T) {
	m := NewMachine(domain.StaffRoleAdmin)
	wf := threeStageWorkflow()
	ticket := draftTicket()
	res, err := m.Transition(ticket, Request{Action: ActionSubmit, Workflow: wf})
	require.NoError(t, err)
	res.ApplyTo(ticket, time.Now())

	prev := ticket.CurrentStageIndex
	actions := []Action{ActionApprove, ActionReject, ActionApprove, ActionApprove, ActionStart}
	for _, action := range actions {
		res, err := m.Transition(ticket, Request{Action: action, ActorRole: domain.StaffRoleAdmin, Workflow: wf})
		if err != nil {
			continue
		}
		assert.GreaterOrEqual(t, res.ToStage, prev)
		res.ApplyTo(ticket, time.Now())
		prev = ticket.CurrentStageIndex
	}
}
