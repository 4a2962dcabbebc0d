package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/workflow"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var adminActor = StaffActor("admin-1", domain.StaffRoleAdmin)

type harness struct {
	ctx      context.Context
	clock    *testClock
	recorder *events.Recorder

	ticketRepo *memory.TicketRepository
	metricRepo *memory.SLAMetricRepository
	breachRepo *memory.SLABreachRepository

	tickets    *TicketService
	automation *AutomationService
	sla        *SLAService
	admin      *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithHistory(t, memory.NewHistoryRepository())
}

func newHarnessWithHistory(t *testing.T, historyRepo repository.TicketHistoryRepository) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	recorder := &events.Recorder{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	events.SubscribeAll(dispatcher, recorder.Handle)

	ticketRepo := memory.NewTicketRepository(historyRepo)
	staffRepo := memory.NewStaffRepository()
	ruleRepo := memory.NewRuleRepository()
	metricRepo := memory.NewSLAMetricRepository()
	breachRepo := memory.NewSLABreachRepository()
	locks := NewKeyedMutex()

	automation := NewAutomationService(AutomationDependencies{
		TicketRepo:     ticketRepo,
		RuleRepo:       ruleRepo,
		StaffRepo:      staffRepo,
		RoundRobinRepo: memory.NewRoundRobinRepository(),
		Dispatcher:     dispatcher,
		Locks:          locks,
		Now:            clock.Now,
	})
	slaSvc := NewSLAService(SLADependencies{
		PolicyRepo: memory.NewSLAPolicyRepository(),
		MetricRepo: metricRepo,
		BreachRepo: breachRepo,
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Locks:      locks,
		Now:        clock.Now,
	})
	workflowRepo := memory.NewWorkflowRepository()
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  memory.NewMessageRepository(),
		HistoryRepo:  historyRepo,
		WorkflowRepo: workflowRepo,
		Machine:      workflow.NewMachine(domain.StaffRoleAdmin),
		Automation:   automation,
		SLA:          slaSvc,
		Dispatcher:   dispatcher,
		Locks:        locks,
		Now:          clock.Now,
	})
	admin := NewAdminService(AdminDependencies{
		WorkflowRepo: workflowRepo,
		RuleRepo:     ruleRepo,
		StaffRepo:    staffRepo,
		Now:          clock.Now,
	})

	return &harness{
		ctx:        context.Background(),
		clock:      clock,
		recorder:   recorder,
		ticketRepo: ticketRepo,
		metricRepo: metricRepo,
		breachRepo: breachRepo,
		tickets:    tickets,
		automation: automation,
		sla:        slaSvc,
		admin:      admin,
	}
}

func (h *harness) createTicket(t *testing.T, title, category string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.Create(h.ctx, UserActor("requester-1"), TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		Category:    category,
		Priority:    priority,
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) addStaff(t *testing.T, name string, role domain.StaffRole) *domain.StaffMember {
	t.Helper()
	staff, err := h.admin.CreateStaffMember(h.ctx, adminActor, name, name+"@example.com", role)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	return staff
}

func (h *harness) addPolicy(t *testing.T, input SLAPolicyInput) *domain.SLAPolicy {
	t.Helper()
	if input.Name == "" {
		input.Name = "default"
	}
	policy, err := h.sla.CreatePolicy(h.ctx, input)
	require.NoError(t, err)
	return policy
}

func (h *harness) tick(t *testing.T, ticketID string) *domain.SLAMetric {
	t.Helper()
	metric, err := h.sla.GetTicketMetric(h.ctx, ticketID)
	require.NoError(t, err)
	_, err = h.sla.OnTick(h.ctx, *metric)
	require.NoError(t, err)
	metric, err = h.sla.GetTicketMetric(h.ctx, ticketID)
	require.NoError(t, err)
	return metric
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
