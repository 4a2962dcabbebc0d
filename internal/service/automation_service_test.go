package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestRoundRobinAssignmentCyclesThroughRole(t *testing.T) {
	h := newHarness(t)
	alice := h.addStaff(t, "alice", "HardwareEngineer")
	bob := h.addStaff(t, "bob", "HardwareEngineer")
	h.addStaff(t, "carol", domain.StaffRoleAgent)

	_, err := h.admin.CreateAssignmentRule(h.ctx, adminActor, AssignmentRuleInput{
		Name:     "hardware",
		Category: "Hardware",
		Role:     "HardwareEngineer",
	})
	require.NoError(t, err)

	var assignees []string
	for _, title := range []string{"broken laptop", "dead monitor", "loud fan"} {
		ticket := h.createTicket(t, title, "Hardware", domain.TicketPriorityMedium)
		require.NotNil(t, ticket.AssigneeID)
		require.NotNil(t, ticket.AssigneeRole)
		assert.Equal(t, domain.StaffRole("HardwareEngineer"), *ticket.AssigneeRole)
		assignees = append(assignees, *ticket.AssigneeID)
	}
	assert.Equal(t, []string{alice.ID, bob.ID, alice.ID}, assignees)
	assert.Len(t, h.recorder.OfType(events.EventAssignmentApplied), 3)

	other := h.createTicket(t, "new mouse", "Peripherals", domain.TicketPriorityLow)
	assert.Nil(t, other.AssigneeID)
}

func TestConcurrentCreatesSpreadEvenlyAcrossRole(t *testing.T) {
	h := newHarness(t)
	desk := []*domain.StaffMember{
		h.addStaff(t, "ana", "ServiceDesk"),
		h.addStaff(t, "ben", "ServiceDesk"),
		h.addStaff(t, "cy", "ServiceDesk"),
	}
	_, err := h.admin.CreateAssignmentRule(h.ctx, adminActor, AssignmentRuleInput{
		Name:     "desk",
		Category: "Desk",
		Role:     "ServiceDesk",
	})
	require.NoError(t, err)

	const perAssignee = 10
	total := perAssignee * len(desk)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
		count = make(map[string]int)
		errs  []error
	)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ticket, err := h.tickets.Create(h.ctx, UserActor("requester-1"), TicketCreateInput{Title: "password reset", Category: "Desk"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ticket.AssigneeID != nil {
				count[*ticket.AssigneeID]++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	for _, member := range desk {
		assert.Equal(t, perAssignee, count[member.ID], member.Name)
	}
	assert.Len(t, h.recorder.OfType(events.EventAssignmentApplied), total)
}

func TestSingleCandidateReceivesEveryTicket(t *testing.T) {
	h := newHarness(t)
	alice := h.addStaff(t, "alice", "Network")
	_, err := h.admin.CreateAssignmentRule(h.ctx, adminActor, AssignmentRuleInput{
		Name:     "network",
		Category: "Network",
		Role:     "Network",
	})
	require.NoError(t, err)

	first := h.createTicket(t, "vpn down", "Network", domain.TicketPriorityHigh)
	second := h.createTicket(t, "wifi flaky", "Network", domain.TicketPriorityHigh)
	require.NotNil(t, first.AssigneeID)
	require.NotNil(t, second.AssigneeID)
	assert.Equal(t, alice.ID, *first.AssigneeID)
	assert.Equal(t, alice.ID, *second.AssigneeID)
}

func TestPrioritizationRuleAppliedOnCreate(t *testing.T) {
	h := newHarness(t)
	_, err := h.admin.CreatePrioritizationRule(h.ctx, adminActor, PrioritizationRuleInput{
		Name:     "outages",
		Keyword:  "OUTAGE",
		Priority: domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	ticket := h.createTicket(t, "Network outage in lab", "Network", domain.TicketPriorityMedium)
	assert.Equal(t, domain.TicketPriorityUrgent, ticket.Priority)

	stored, err := h.tickets.Get(h.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, stored.Priority)

	applied := h.recorder.OfType(events.EventPrioritizationApplied)
	require.Len(t, applied, 1)
	payload, ok := applied[0].Payload.(events.PrioritizationAppliedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketPriorityMedium, payload.OldPriority)
	assert.Equal(t, "outages", payload.RuleName)

	history, err := h.tickets.ListHistory(h.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionCreated, history[0].Action)
	assert.Equal(t, domain.ActionPriorityChange, history[1].Action)
	assert.Equal(t, domain.ActorTypeSystem, history[1].ActorType)

	calm := h.createTicket(t, "printer jam", "Hardware", domain.TicketPriorityLow)
	assert.Equal(t, domain.TicketPriorityLow, calm.Priority)
	assert.Len(t, h.recorder.OfType(events.EventPrioritizationApplied), 1)
}

func TestEscalationAppliesOnce(t *testing.T) {
	h := newHarness(t)
	lead := h.addStaff(t, "lead", domain.StaffRoleTeamLead)
	urgent := domain.TicketPriorityUrgent
	_, err := h.admin.CreateEscalationRule(h.ctx, adminActor, EscalationRuleInput{
		Name:           "stale high drafts",
		Priority:       domain.TicketPriorityHigh,
		Status:         domain.TicketStatusDraft,
		Hours:          2,
		EscalateToRole: domain.StaffRoleTeamLead,
		NewPriority:    &urgent,
	})
	require.NoError(t, err)

	ticket := h.createTicket(t, "server rack warm", "Facilities", domain.TicketPriorityHigh)

	h.clock.Advance(time.Hour)
	_, changed, err := h.automation.ApplyEscalations(h.ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	h.clock.Advance(2 * time.Hour)
	escalated, changed, err := h.automation.ApplyEscalations(h.ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, domain.TicketPriorityUrgent, escalated.Priority)
	require.NotNil(t, escalated.AssigneeRole)
	assert.Equal(t, domain.StaffRoleTeamLead, *escalated.AssigneeRole)
	require.NotNil(t, escalated.AssigneeID)
	assert.Equal(t, lead.ID, *escalated.AssigneeID)

	h.clock.Advance(time.Hour)
	_, changed, err = h.automation.ApplyEscalations(h.ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	triggered := h.recorder.OfType(events.EventEscalationTriggered)
	require.Len(t, triggered, 1)
	payload, ok := triggered[0].Payload.(events.EscalationTriggeredPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketPriorityHigh, payload.OldPriority)
	assert.Equal(t, "stale high drafts", payload.RuleName)
}

func TestEscalationRulesMergeInOrder(t *testing.T) {
	h := newHarness(t)
	h.addStaff(t, "lead", domain.StaffRoleTeamLead)
	h.addStaff(t, "boss", domain.StaffRoleAdmin)
	high := domain.TicketPriorityHigh
	urgent := domain.TicketPriorityUrgent

	_, err := h.admin.CreateEscalationRule(h.ctx, adminActor, EscalationRuleInput{
		Name:           "second",
		Priority:       domain.TicketPriorityMedium,
		Status:         domain.TicketStatusDraft,
		Hours:          1,
		EscalateToRole: domain.StaffRoleAdmin,
		NewPriority:    &urgent,
		Order:          2,
	})
	require.NoError(t, err)
	_, err = h.admin.CreateEscalationRule(h.ctx, adminActor, EscalationRuleInput{
		Name:           "first",
		Priority:       domain.TicketPriorityMedium,
		Status:         domain.TicketStatusDraft,
		Hours:          1,
		EscalateToRole: domain.StaffRoleTeamLead,
		NewPriority:    &high,
		Order:          1,
	})
	require.NoError(t, err)

	ticket := h.createTicket(t, "slow builds", "Tooling", domain.TicketPriorityMedium)
	h.clock.Advance(90 * time.Minute)
	escalated, changed, err := h.automation.ApplyEscalations(h.ctx, ticket.ID)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, domain.TicketPriorityUrgent, escalated.Priority)
	assert.Equal(t, domain.StaffRoleAdmin, *escalated.AssigneeRole)
}

func TestEscalationSkipsTerminalTickets(t *testing.T) {
	h := newHarness(t)
	_, err := h.admin.CreateEscalationRule(h.ctx, adminActor, EscalationRuleInput{
		Name:           "rejected",
		Priority:       domain.TicketPriorityLow,
		Status:         domain.TicketStatusRejected,
		EscalateToRole: domain.StaffRoleTeamLead,
	})
	require.NoError(t, err)
	wf, err := h.admin.CreateWorkflow(h.ctx, adminActor, "single", []domain.WorkflowStage{
		{Name: "lead", ApproverRole: domain.StaffRoleTeamLead},
	})
	require.NoError(t, err)

	ticket := h.createTicket(t, "access request", "Access", domain.TicketPriorityLow)
	_, err = h.tickets.Submit(h.ctx, UserActor("requester-1"), ticket.ID, wf.ID, "")
	require.NoError(t, err)
	_, err = h.tickets.Reject(h.ctx, StaffActor("lead-1", domain.StaffRoleTeamLead), ticket.ID, "no")
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, changed, err := h.automation.ApplyEscalations(h.ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, h.recorder.OfType(events.EventEscalationTriggered))
}
