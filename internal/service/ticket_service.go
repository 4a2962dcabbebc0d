package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	workflows  repository.WorkflowRepository
	machine    *workflow.Machine
	automation *AutomationService
	sla        *SLAService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	locks      *KeyedMutex
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	HistoryRepo  repository.TicketHistoryRepository
	WorkflowRepo repository.WorkflowRepository
	Machine      *workflow.Machine
	Automation   *AutomationService
	SLA          *SLAService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Locks        *KeyedMutex
	Now          func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterID string
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
	DueDate     *time.Time
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	RequesterID *string
	AssigneeID  *string
	WorkflowID  *string
	Category    *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// MessageInput describes a new ticket message.
type MessageInput struct {
	Type domain.TicketMessageType
	Body string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	machine := deps.Machine
	if machine == nil {
		machine = workflow.NewMachine(domain.StaffRoleAdmin)
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		workflows:  deps.WorkflowRepo,
		machine:    machine,
		automation: deps.Automation,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		logger:     nopIfNil(deps.Logger),
		locks:      locks,
		now:        clockOrDefault(deps.Now),
	}
}

// Create stores a Draft ticket, applies prioritization and assignment rules
// and starts SLA tracking.
func (s *TicketService) Create(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, apperrors.NewValidationError("category is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	requester := strings.TrimSpace(input.RequesterID)
	if requester == "" {
		requester = actor.ID
	}
	if requester == "" {
		return nil, apperrors.NewValidationError("requester is required", nil)
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		Number:          generateTicketNumber(),
		RequesterID:     requester,
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Category:        category,
		Priority:        priority,
		Status:          domain.TicketStatusDraft,
		DueDate:         input.DueDate,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	unlock := s.locks.Lock(ticket.ID)
	defer unlock()

	entry := actor.historyEntry(ticket.ID, domain.ActionCreated, "", nil,
		map[string]any{"status": ticket.Status, "priority": ticket.Priority}, now)
	if err := s.tickets.CreateWithHistory(ctx, ticket, entry); err != nil {
		return nil, mapRepoError(err, "ticket", nil)
	}
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        actor.event(),
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Category: ticket.Category,
			Priority: ticket.Priority,
		},
	})

	if s.automation != nil {
		if err := s.automation.applyCreationRules(ctx, ticket); err != nil {
			s.logger.Warn("creation rules failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	if s.sla != nil {
		if _, err := s.sla.OnTicketCreated(ctx, ticket); err != nil {
			s.logger.Warn("sla tracking failed to start", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// List returns tickets matching filter.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: filter.RequesterID,
		AssigneeID:  filter.AssigneeID,
		WorkflowID:  filter.WorkflowID,
		Category:    filter.Category,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Submit enters the approval workflow at stage 0.
func (s *TicketService) Submit(ctx context.Context, actor Actor, ticketID, workflowID, comment string) (*domain.Ticket, error) {
	if strings.TrimSpace(workflowID) == "" {
		return nil, apperrors.NewValidationError("workflow_id is required", nil)
	}
	return s.transition(ctx, actor, ticketID, workflow.ActionSubmit, &workflowID, comment)
}

// Approve approves the current stage. The last approval moves the ticket to
// Approved.
func (s *TicketService) Approve(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, workflow.ActionApprove, nil, comment)
}

// Reject rejects the ticket at its current stage.
func (s *TicketService) Reject(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, workflow.ActionReject, nil, comment)
}

// MarkInProgress starts work on an approved ticket.
func (s *TicketService) MarkInProgress(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, workflow.ActionStart, nil, comment)
}

// Complete marks work as done.
func (s *TicketService) Complete(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, workflow.ActionComplete, nil, comment)
}

// Close closes a completed ticket.
func (s *TicketService) Close(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, workflow.ActionClose, nil, comment)
}

func (s *TicketService) transition(ctx context.Context, actor Actor, ticketID string, action workflow.Action, workflowID *string, comment string) (*domain.Ticket, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	var wf *domain.Workflow
	switch {
	case workflowID != nil:
		wf, err = s.workflows.GetByID(ctx, *workflowID)
	case ticket.WorkflowID != nil && (action == workflow.ActionApprove || action == workflow.ActionReject):
		wf, err = s.workflows.GetByID(ctx, *ticket.WorkflowID)
	}
	if err != nil {
		return nil, mapRepoError(err, "workflow", map[string]any{"ticket_id": ticketID})
	}

	result, err := s.machine.Transition(ticket, workflow.Request{
		Action:    action,
		ActorRole: actor.Role,
		Workflow:  wf,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	result.ApplyTo(ticket, now)
	ticket.UpdatedAt = now
	entry := actor.historyEntry(ticket.ID, result.HistoryAction, comment,
		map[string]any{"status": result.FromStatus, "stage_index": result.FromStage},
		map[string]any{"status": result.ToStatus, "stage_index": result.ToStage},
		now)
	if err := s.tickets.UpdateWithHistory(ctx, ticket, entry); err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	s.publishTransition(ctx, actor, ticket, wf, result, comment, now)
	s.afterTransition(ctx, ticket, result, now)
	return ticket, nil
}

func (s *TicketService) publishTransition(ctx context.Context, actor Actor, ticket *domain.Ticket, wf *domain.Workflow, result workflow.Result, comment string, now time.Time) {
	if result.Action == workflow.ActionApprove || result.Action == workflow.ActionReject {
		eventType := events.EventTicketApproved
		if result.Action == workflow.ActionReject {
			eventType = events.EventTicketRejected
		}
		stageName := ""
		if wf != nil && result.FromStage < len(wf.Stages) {
			stageName = wf.Stages[result.FromStage].Name
		}
		publish(ctx, s.dispatcher, now, events.Event{
			Type:         eventType,
			TicketID:     ticket.ID,
			TicketNumber: ticket.Number,
			Actor:        actor.event(),
			Payload: events.TicketDecisionPayload{
				StageIndex: result.FromStage,
				StageName:  stageName,
				NewStatus:  result.ToStatus,
				Comment:    comment,
			},
		})
	}
	if !result.StatusChanged() {
		return
	}
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventTicketStatusChanged,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        actor.event(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: result.FromStatus,
			NewStatus: result.ToStatus,
			Comment:   comment,
		},
	})
}

// afterTransition drives SLA matching and milestones, then post-approval
// assignment. Failures are logged; the transition itself is already committed.
func (s *TicketService) afterTransition(ctx context.Context, ticket *domain.Ticket, result workflow.Result, now time.Time) {
	if s.sla != nil {
		var err error
		switch result.Action {
		case workflow.ActionSubmit:
			_, err = s.sla.OnWorkflowAssigned(ctx, ticket)
		case workflow.ActionStart:
			_, err = s.sla.OnFirstResponse(ctx, ticket.ID, now)
		case workflow.ActionComplete:
			_, err = s.sla.OnResolved(ctx, ticket.ID, now)
		}
		if err == nil && result.ApprovalCompleted {
			_, err = s.sla.OnApprovalCompleted(ctx, ticket.ID, now)
		}
		if err == nil && ticket.Status.IsTerminal() {
			_, err = s.sla.Finalize(ctx, ticket.ID)
		}
		if err != nil {
			s.logger.Warn("sla milestone update failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("action", string(result.Action)),
				zap.Error(err))
		}
	}
	if s.automation != nil && result.ApprovalCompleted {
		if err := s.automation.assignAfterApproval(ctx, ticket); err != nil {
			s.logger.Warn("post-approval assignment failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
}

// AddMessage appends a reply or internal note. A staff public reply stamps the
// first-response milestone.
func (s *TicketService) AddMessage(ctx context.Context, actor Actor, ticketID string, input MessageInput) (*domain.TicketMessage, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", nil)
	}
	msgType := input.Type
	if msgType == "" {
		msgType = domain.MessageTypePublicReply
	}
	if !msgType.Valid() {
		return nil, apperrors.NewValidationError("invalid message type", map[string]any{"type": msgType})
	}
	if actor.Type != domain.ActorTypeStaff && msgType != domain.MessageTypePublicReply {
		return nil, apperrors.NewForbidden("only staff can post internal notes")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if actor.Type == domain.ActorTypeUser && ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}

	now := s.now()
	msg := &domain.TicketMessage{
		ID:          uuid.NewString(),
		TicketID:    ticket.ID,
		AuthorType:  actor.historyType(),
		AuthorID:    actor.idPtr(),
		MessageType: msgType,
		Body:        body,
		CreatedAt:   now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.sla != nil && msg.StampsFirstResponse() {
		if _, err := s.sla.OnFirstResponse(ctx, ticket.ID, now); err != nil {
			s.logger.Warn("sla first response stamp failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return msg, nil
}

// ListMessages returns the ticket thread. Internal notes are hidden from
// requesters.
func (s *TicketService) ListMessages(ctx context.Context, actor Actor, ticketID string) ([]domain.TicketMessage, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID, actor.Type == domain.ActorTypeStaff)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// ListHistory returns the append-only history of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
