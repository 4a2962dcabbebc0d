package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/rules"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const maxRoundRobinCandidates = 1000

// AutomationService applies rule proposals to tickets: prioritization and
// assignment on creation, assignment after approval, and time based
// escalation from the sweeper.
type AutomationService struct {
	tickets    repository.TicketRepository
	rules      repository.RuleRepository
	staff      repository.StaffRepository
	cursors    repository.RoundRobinRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	locks      *KeyedMutex
	now        func() time.Time
}

// AutomationDependencies bundles collaborators for AutomationService.
type AutomationDependencies struct {
	TicketRepo     repository.TicketRepository
	RuleRepo       repository.RuleRepository
	StaffRepo      repository.StaffRepository
	RoundRobinRepo repository.RoundRobinRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Locks          *KeyedMutex
	Now            func() time.Time
}

// NewAutomationService constructs the service.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &AutomationService{
		tickets:    deps.TicketRepo,
		rules:      deps.RuleRepo,
		staff:      deps.StaffRepo,
		cursors:    deps.RoundRobinRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     nopIfNil(deps.Logger),
		locks:      locks,
		now:        clockOrDefault(deps.Now),
	}
}

// ApplyEscalations evaluates escalation rules against the current ticket and
// applies the merged proposal. It reports whether the ticket changed.
func (s *AutomationService) ApplyEscalations(ctx context.Context, ticketID string) (*domain.Ticket, bool, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, false, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status.IsTerminal() {
		return ticket, false, nil
	}
	escalationRules, err := s.rules.ListEscalationRules(ctx)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	now := s.now()
	proposal := rules.EvaluateEscalations(escalationRules, ticket, now)
	if proposal.Empty() {
		return ticket, false, nil
	}

	oldPriority := ticket.Priority
	oldRole := ticket.AssigneeRole
	oldAssignee := ticket.AssigneeID
	if proposal.Priority != nil {
		ticket.Priority = *proposal.Priority
	}
	if proposal.AssigneeRole != nil {
		role := *proposal.AssigneeRole
		ticket.AssigneeRole = &role
		assignee, err := s.nextAssignee(ctx, role)
		if err != nil {
			return nil, false, err
		}
		if assignee != nil {
			id := assignee.ID
			ticket.AssigneeID = &id
		}
	}
	entry := SystemActor.historyEntry(ticket.ID, domain.ActionEscalated, proposal.RuleName(),
		map[string]any{"priority": oldPriority, "assignee_role": oldRole, "assignee_id": oldAssignee},
		map[string]any{"priority": ticket.Priority, "assignee_role": ticket.AssigneeRole, "assignee_id": ticket.AssigneeID},
		now)
	if err := s.save(ctx, ticket, entry); err != nil {
		return nil, false, err
	}
	s.metrics.RecordEscalation()
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventEscalationTriggered,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        events.SystemActor,
		Payload: events.EscalationTriggeredPayload{
			RuleName:       proposal.RuleName(),
			EscalateToRole: proposal.AssigneeRole,
			OldPriority:    oldPriority,
			NewPriority:    proposal.Priority,
			AssigneeID:     ticket.AssigneeID,
		},
	})
	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("rules", proposal.RuleName()))
	return ticket, true, nil
}

// applyCreationRules runs prioritization then assignment on a freshly created
// ticket. The caller holds the ticket lock.
func (s *AutomationService) applyCreationRules(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.applyPrioritization(ctx, ticket); err != nil {
		return err
	}
	return s.applyAssignment(ctx, ticket)
}

// assignAfterApproval assigns an approved ticket that has no assignee yet.
// The caller holds the ticket lock.
func (s *AutomationService) assignAfterApproval(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.AssigneeID != nil {
		return nil
	}
	return s.applyAssignment(ctx, ticket)
}

func (s *AutomationService) applyPrioritization(ctx context.Context, ticket *domain.Ticket) error {
	prioritizationRules, err := s.rules.ListPrioritizationRules(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}
	proposal := rules.Prioritize(prioritizationRules, ticket)
	if proposal.Empty() {
		return nil
	}
	now := s.now()
	oldPriority := ticket.Priority
	ticket.Priority = *proposal.Priority
	entry := SystemActor.historyEntry(ticket.ID, domain.ActionPriorityChange, proposal.RuleName(),
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": ticket.Priority},
		now)
	if err := s.save(ctx, ticket, entry); err != nil {
		ticket.Priority = oldPriority
		return err
	}
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventPrioritizationApplied,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        events.SystemActor,
		Payload: events.PrioritizationAppliedPayload{
			RuleName:    proposal.RuleName(),
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
		},
	})
	return nil
}

func (s *AutomationService) applyAssignment(ctx context.Context, ticket *domain.Ticket) error {
	assignmentRules, err := s.rules.ListAssignmentRules(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}
	proposal := rules.MatchAssignment(assignmentRules, ticket)
	if proposal.Empty() {
		return nil
	}
	role := *proposal.AssigneeRole
	assignee, err := s.nextAssignee(ctx, role)
	if err != nil {
		return err
	}
	if assignee == nil {
		s.logger.Warn("no active staff for assignment role",
			zap.String("ticket_id", ticket.ID),
			zap.String("role", string(role)))
	}

	now := s.now()
	oldAssignee := ticket.AssigneeID
	oldRole := ticket.AssigneeRole
	ticket.AssigneeRole = &role
	if assignee != nil {
		id := assignee.ID
		ticket.AssigneeID = &id
	}
	entry := SystemActor.historyEntry(ticket.ID, domain.ActionAssigneeChange, proposal.RuleName(),
		map[string]any{"assignee_id": oldAssignee, "assignee_role": oldRole},
		map[string]any{"assignee_id": ticket.AssigneeID, "assignee_role": ticket.AssigneeRole},
		now)
	if err := s.save(ctx, ticket, entry); err != nil {
		ticket.AssigneeID, ticket.AssigneeRole = oldAssignee, oldRole
		return err
	}
	if assignee != nil {
		s.metrics.RecordAssignment(string(role))
	}
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventAssignmentApplied,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        events.SystemActor,
		Payload: events.AssignmentAppliedPayload{
			RuleName:    proposal.RuleName(),
			Role:        role,
			AssigneeID:  ticket.AssigneeID,
			OldAssignee: oldAssignee,
		},
	})
	return nil
}

// nextAssignee reserves the next round-robin slot for role. The cursor is
// advanced atomically by the store, so concurrent callers never share a slot.
func (s *AutomationService) nextAssignee(ctx context.Context, role domain.StaffRole) (*domain.StaffMember, error) {
	staffList, err := s.staff.List(ctx, repository.StaffFilter{
		Role:   &role,
		Active: ptrBool(true),
		Limit:  maxRoundRobinCandidates,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(staffList) == 0 {
		return nil, nil
	}
	candidates := make([]*domain.StaffMember, 0, len(staffList))
	for i := range staffList {
		candidates = append(candidates, &staffList[i])
	}
	rules.SortCandidates(candidates)

	slot, err := s.cursors.Advance(ctx, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules.PickRoundRobin(candidates, slot), nil
}

// save persists ticket together with its history entry.
func (s *AutomationService) save(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	updatedAt := ticket.UpdatedAt
	ticket.UpdatedAt = entry.CreatedAt
	if err := s.tickets.UpdateWithHistory(ctx, ticket, entry); err != nil {
		ticket.UpdatedAt = updatedAt
		return mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return nil
}
