package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type fakeProcessor struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   map[string]int
	status  domain.TicketStatus
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		failing: make(map[string]bool),
		calls:   make(map[string]int),
		status:  domain.TicketStatusInProgress,
	}
}

func (p *fakeProcessor) OnTick(_ context.Context, metric domain.SLAMetric) (*domain.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[metric.ID]++
	if p.failing[metric.ID] {
		return nil, errors.New("database unavailable")
	}
	return &domain.Ticket{ID: metric.TicketID, Status: p.status}, nil
}

func (p *fakeProcessor) setFailing(id string, failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[id] = failing
}

func (p *fakeProcessor) callCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

type fakeEscalator struct {
	mu      sync.Mutex
	tickets []string
}

func (e *fakeEscalator) ApplyEscalations(_ context.Context, ticketID string) (*domain.Ticket, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickets = append(e.tickets, ticketID)
	return nil, false, nil
}

func (e *fakeEscalator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tickets)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return nil, persistence.ErrLockHeld
}

func seedMetrics(t *testing.T, repo *memory.SLAMetricRepository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, created, err := repo.GetOrCreate(context.Background(), &domain.SLAMetric{
			ID:        id,
			TicketID:  "ticket-" + id,
			PolicyID:  "policy",
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		require.True(t, created)
	}
}

func TestSweepContinuesPastFailingMetricAndBacksOff(t *testing.T) {
	repo := memory.NewSLAMetricRepository()
	seedMetrics(t, repo, "m1", "m2", "m3")
	processor := newFakeProcessor()
	processor.setFailing("m2", true)
	escalator := &fakeEscalator{}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sweeper := NewSLASweeper(SweeperDependencies{
		MetricRepo: repo,
		Processor:  processor,
		Escalator:  escalator,
		Config: config.SLAConfig{
			Workers:      2,
			PageSize:     2,
			RetryInitial: time.Minute,
			RetryMax:     10 * time.Minute,
		},
		Now: func() time.Time { return now },
	})

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 2, Failed: 1}, result)
	assert.Equal(t, 2, escalator.count())

	result, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 2, Deferred: 1}, result)
	assert.Equal(t, 1, processor.callCount("m2"))

	now = now.Add(2 * time.Minute)
	processor.setFailing("m2", false)
	result, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 3}, result)
	assert.Equal(t, 2, processor.callCount("m2"))
	assert.Equal(t, 3, processor.callCount("m1"))
}

func TestSweepBackoffGrows(t *testing.T) {
	sweeper := NewSLASweeper(SweeperDependencies{
		Config: config.SLAConfig{RetryInitial: time.Minute, RetryMax: 3 * time.Minute},
	})
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := sweeper.recordFailure("m1", start)
	assert.Equal(t, start.Add(time.Minute), first)
	second := sweeper.recordFailure("m1", start)
	assert.True(t, second.After(first))
	for i := 0; i < 5; i++ {
		sweeper.recordFailure("m1", start)
	}
	capped := sweeper.recordFailure("m1", start)
	assert.Equal(t, start.Add(3*time.Minute), capped)

	assert.False(t, sweeper.due("m1", start))
	sweeper.clearFailure("m1")
	assert.True(t, sweeper.due("m1", start))
}

func TestSweepSkipsTerminalTicketsForEscalation(t *testing.T) {
	repo := memory.NewSLAMetricRepository()
	seedMetrics(t, repo, "m1")
	processor := newFakeProcessor()
	processor.status = domain.TicketStatusClosed
	escalator := &fakeEscalator{}

	sweeper := NewSLASweeper(SweeperDependencies{
		MetricRepo: repo,
		Processor:  processor,
		Escalator:  escalator,
		Config:     config.SLAConfig{Workers: 1, PageSize: 10},
	})
	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, escalator.count())
}

func TestSweepSkippedWhenLockHeld(t *testing.T) {
	repo := memory.NewSLAMetricRepository()
	seedMetrics(t, repo, "m1")
	processor := newFakeProcessor()

	sweeper := NewSLASweeper(SweeperDependencies{
		MetricRepo: repo,
		Processor:  processor,
		Locker:     heldLocker{},
		Config:     config.SLAConfig{Workers: 1, PageSize: 10},
	})
	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, processor.callCount("m1"))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sweeper := NewSLASweeper(SweeperDependencies{
		MetricRepo: memory.NewSLAMetricRepository(),
		Processor:  newFakeProcessor(),
		Config:     config.SLAConfig{SweepSchedule: "every now and then"},
	})
	require.Error(t, sweeper.Start())
}

type sweepFixture struct {
	ctx     context.Context
	now     time.Time
	sla     *service.SLAService
	tickets *service.TicketService
	sweeper *SLASweeper
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		ctx: context.Background(),
		now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	history := memory.NewHistoryRepository()
	ticketRepo := memory.NewTicketRepository(history)
	metricRepo := memory.NewSLAMetricRepository()
	ruleRepo := memory.NewRuleRepository()
	locks := service.NewKeyedMutex()

	automation := service.NewAutomationService(service.AutomationDependencies{
		TicketRepo:     ticketRepo,
		RuleRepo:       ruleRepo,
		StaffRepo:      memory.NewStaffRepository(),
		RoundRobinRepo: memory.NewRoundRobinRepository(),
		Locks:          locks,
		Now:            clock,
	})
	f.sla = service.NewSLAService(service.SLADependencies{
		PolicyRepo: memory.NewSLAPolicyRepository(),
		MetricRepo: metricRepo,
		BreachRepo: memory.NewSLABreachRepository(),
		TicketRepo: ticketRepo,
		Locks:      locks,
		Now:        clock,
	})
	f.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  memory.NewMessageRepository(),
		HistoryRepo:  history,
		WorkflowRepo: memory.NewWorkflowRepository(),
		Automation:   automation,
		SLA:          f.sla,
		Locks:        locks,
		Now:          clock,
	})
	f.sweeper = NewSLASweeper(SweeperDependencies{
		MetricRepo: metricRepo,
		Processor:  f.sla,
		Escalator:  automation,
		Config:     config.SLAConfig{Workers: 1, PageSize: 10},
		Now:        clock,
	})

	admin := service.NewAdminService(service.AdminDependencies{RuleRepo: ruleRepo, Now: clock})
	high := domain.TicketPriorityHigh
	_, err := admin.CreateEscalationRule(f.ctx, service.StaffActor("admin-1", domain.StaffRoleAdmin), service.EscalationRuleInput{
		Name:        "stale drafts",
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusDraft,
		Hours:       1,
		NewPriority: &high,
	})
	require.NoError(t, err)
	return f
}

func (f *sweepFixture) createTicket(t *testing.T, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(f.ctx, service.UserActor("requester-1"), service.TicketCreateInput{
		Title:    title,
		Category: "Network",
		Priority: domain.TicketPriorityMedium,
	})
	require.NoError(t, err)
	return ticket
}

func TestSweepEscalatesTicketWhoseMilestonesAreAllStamped(t *testing.T) {
	f := newSweepFixture(t)
	_, err := f.sla.CreatePolicy(f.ctx, service.SLAPolicyInput{Name: "first reply", ResponseTimeMins: intPtr(30)})
	require.NoError(t, err)

	ticket := f.createTicket(t, "vpn drops")
	_, err = f.tickets.AddMessage(f.ctx, service.StaffActor("agent-1", domain.StaffRoleAgent), ticket.ID, service.MessageInput{Body: "on it"})
	require.NoError(t, err)

	metric, err := f.sla.GetTicketMetric(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, metric.FirstResponseAt)
	assert.Nil(t, metric.FinalizedAt)

	f.now = f.now.Add(2 * time.Hour)
	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Processed: 1}, result)

	escalated, err := f.tickets.Get(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, escalated.Priority)

	after, err := f.sla.GetTicketMetric(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, metric.Version, after.Version)
	assert.Equal(t, domain.SLAStatusWithin, after.Status)
}

func TestSweepDoesNotReachTicketsWithoutMetric(t *testing.T) {
	f := newSweepFixture(t)
	_, err := f.sla.CreatePolicy(f.ctx, service.SLAPolicyInput{Name: "hardware", Category: strPtr("Hardware"), ResponseTimeMins: intPtr(30)})
	require.NoError(t, err)
	ticket := f.createTicket(t, "dns flaps")

	f.now = f.now.Add(2 * time.Hour)
	result, err := f.sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)

	stored, err := f.tickets.Get(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, stored.Priority)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
