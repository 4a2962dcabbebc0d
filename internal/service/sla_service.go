package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const maxMetricWriteAttempts = 3

// SLAService owns SLA metric tracking, breach detection and acknowledgment.
type SLAService struct {
	policies   repository.SLAPolicyRepository
	metrics    repository.SLAMetricRepository
	breaches   repository.SLABreachRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	stats      *observability.Metrics
	logger     *zap.Logger
	locks      *KeyedMutex
	now        func() time.Time

	warningThreshold int
}

// SLADependencies bundles collaborators for SLAService.
type SLADependencies struct {
	PolicyRepo  repository.SLAPolicyRepository
	MetricRepo  repository.SLAMetricRepository
	BreachRepo  repository.SLABreachRepository
	TicketRepo  repository.TicketRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Locks       *KeyedMutex
	Now         func() time.Time

	// DefaultWarningThreshold applies to policies created without a threshold.
	DefaultWarningThreshold int
}

// SLAPolicyInput describes a new policy.
type SLAPolicyInput struct {
	Name               string
	Category           *string
	Priority           *domain.TicketPriority
	WorkflowID         *string
	ResponseTimeMins   *int
	ResolutionTimeMins *int
	ApprovalTimeMins   *int
	WarningThreshold   int
	IsActive           *bool
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyedMutex()
	}
	threshold := deps.DefaultWarningThreshold
	if threshold <= 0 || threshold > 100 {
		threshold = sla.DefaultWarningThreshold
	}
	return &SLAService{
		policies:         deps.PolicyRepo,
		metrics:          deps.MetricRepo,
		breaches:         deps.BreachRepo,
		tickets:          deps.TicketRepo,
		dispatcher:       deps.Dispatcher,
		stats:            deps.Metrics,
		logger:           nopIfNil(deps.Logger),
		locks:            locks,
		now:              clockOrDefault(deps.Now),
		warningThreshold: threshold,
	}
}

// CreatePolicy validates and stores a policy.
func (s *SLAService) CreatePolicy(ctx context.Context, input SLAPolicyInput) (*domain.SLAPolicy, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("policy name is required", nil)
	}
	if input.WarningThreshold < 0 || input.WarningThreshold > 100 {
		return nil, apperrors.NewValidationError("warning threshold must be between 0 and 100",
			map[string]any{"warning_threshold": input.WarningThreshold})
	}
	if input.ResponseTimeMins == nil && input.ResolutionTimeMins == nil && input.ApprovalTimeMins == nil {
		return nil, apperrors.NewValidationError("policy needs at least one target", nil)
	}
	for field, v := range map[string]*int{
		"response_time_mins":   input.ResponseTimeMins,
		"resolution_time_mins": input.ResolutionTimeMins,
		"approval_time_mins":   input.ApprovalTimeMins,
	} {
		if v != nil && *v <= 0 {
			return nil, apperrors.NewValidationError("targets must be positive", map[string]any{field: *v})
		}
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	threshold := input.WarningThreshold
	if threshold == 0 {
		threshold = s.warningThreshold
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := s.now()
	policy := &domain.SLAPolicy{
		ID:                 uuid.NewString(),
		Name:               name,
		Category:           input.Category,
		Priority:           input.Priority,
		WorkflowID:         input.WorkflowID,
		ResponseTimeMins:   input.ResponseTimeMins,
		ResolutionTimeMins: input.ResolutionTimeMins,
		ApprovalTimeMins:   input.ApprovalTimeMins,
		WarningThreshold:   threshold,
		IsActive:           active,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, mapRepoError(err, "sla policy", nil)
	}
	return policy, nil
}

// ListPolicies returns stored policies.
func (s *SLAService) ListPolicies(ctx context.Context, activeOnly bool) ([]domain.SLAPolicy, error) {
	policies, err := s.policies.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return policies, nil
}

// OnTicketCreated starts tracking ticket against the most specific matching
// policy. It returns nil when no policy matches.
func (s *SLAService) OnTicketCreated(ctx context.Context, ticket *domain.Ticket) (*domain.SLAMetric, error) {
	return s.track(ctx, ticket)
}

// OnWorkflowAssigned re-runs policy matching once ticket carries its workflow,
// so workflow scoped policies can apply. A strictly more specific policy
// replaces the current metric: the old metric is finalized and its stamped
// milestones carry over to the new one.
func (s *SLAService) OnWorkflowAssigned(ctx context.Context, ticket *domain.Ticket) (*domain.SLAMetric, error) {
	return s.track(ctx, ticket)
}

func (s *SLAService) track(ctx context.Context, ticket *domain.Ticket) (*domain.SLAMetric, error) {
	policies, err := s.policies.List(ctx, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	current, err := s.metrics.GetByTicket(ctx, ticket.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	policy := sla.MatchPolicy(policies, ticket)
	if policy == nil {
		return current, nil
	}
	if current != nil {
		if current.Finalized() {
			return current, nil
		}
		currentPolicy, err := s.currentPolicy(ctx, policies, current.PolicyID)
		if err != nil {
			return nil, err
		}
		if !sla.Supersedes(policy, currentPolicy, ticket) {
			return current, nil
		}
		if current, err = s.mutate(ctx, ticket.ID, nil, true); err != nil {
			return nil, err
		}
	}

	now := s.now()
	metric := sla.NewMetric(ticket.ID, policy, ticket.CreatedAt)
	if policy.WarningThreshold <= 0 {
		metric.WarningThreshold = s.warningThreshold
	}
	sla.CarryMilestones(metric, current)
	metric.ID = uuid.NewString()
	metric.CreatedAt = now
	metric.UpdatedAt = now

	stored, created, err := s.metrics.GetOrCreate(ctx, metric)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if created {
		fields := []zap.Field{
			zap.String("ticket_id", ticket.ID),
			zap.String("policy_id", policy.ID),
			zap.String("metric_id", stored.ID),
		}
		if current != nil {
			fields = append(fields, zap.String("superseded_metric_id", current.ID))
		}
		s.logger.Debug("sla tracking started", fields...)
	}
	return stored, nil
}

// currentPolicy resolves the policy behind an existing metric. Inactive or
// deleted policies resolve to nil, which any matching policy supersedes.
func (s *SLAService) currentPolicy(ctx context.Context, active []domain.SLAPolicy, id string) (*domain.SLAPolicy, error) {
	for i := range active {
		if active[i].ID == id {
			return &active[i], nil
		}
	}
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if !policy.IsActive {
		return nil, nil
	}
	return policy, nil
}

// OnFirstResponse stamps the response milestone once.
func (s *SLAService) OnFirstResponse(ctx context.Context, ticketID string, at time.Time) (*domain.SLAMetric, error) {
	return s.stamp(ctx, ticketID, domain.BreachTypeResponse, at)
}

// OnResolved stamps the resolution milestone once.
func (s *SLAService) OnResolved(ctx context.Context, ticketID string, at time.Time) (*domain.SLAMetric, error) {
	return s.stamp(ctx, ticketID, domain.BreachTypeResolution, at)
}

// OnApprovalCompleted stamps the approval milestone once.
func (s *SLAService) OnApprovalCompleted(ctx context.Context, ticketID string, at time.Time) (*domain.SLAMetric, error) {
	return s.stamp(ctx, ticketID, domain.BreachTypeApproval, at)
}

// Finalize runs one last recompute and freezes the metric. Called when the
// ticket reaches a terminal status.
func (s *SLAService) Finalize(ctx context.Context, ticketID string) (*domain.SLAMetric, error) {
	return s.mutate(ctx, ticketID, nil, true)
}

// OnTick recomputes a tracked metric during a sweep. Metrics whose ticket has
// reached a terminal status are finalized instead. A metric with every
// milestone stamped stays open until then so the sweeper keeps evaluating
// escalations for its ticket. The returned ticket is nil when the metric's
// ticket no longer exists.
func (s *SLAService) OnTick(ctx context.Context, metric domain.SLAMetric) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, metric.TicketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, ferr := s.mutate(ctx, metric.TicketID, nil, true)
			return nil, ferr
		}
		return nil, err
	}
	_, err = s.mutate(ctx, metric.TicketID, nil, ticket.Status.IsTerminal())
	return ticket, err
}

func (s *SLAService) stamp(ctx context.Context, ticketID string, breachType domain.BreachType, at time.Time) (*domain.SLAMetric, error) {
	return s.mutate(ctx, ticketID, func(m *domain.SLAMetric) bool {
		return sla.StampMilestone(m, breachType, at)
	}, false)
}

// mutate loads the ticket's metric, applies change, recomputes statuses and
// records breaches, then persists with an optimistic version check. Breach
// rows are written before the metric so a failed breach insert is retried on
// the next call instead of being hidden behind an already Breached status.
func (s *SLAService) mutate(ctx context.Context, ticketID string, change func(*domain.SLAMetric) bool, finalize bool) (*domain.SLAMetric, error) {
	for attempt := 1; ; attempt++ {
		metric, err := s.metrics.GetByTicket(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if metric.Finalized() {
			return metric, nil
		}

		// Every targeted milestone is stamped; statuses can no longer move.
		if change == nil && !finalize && sla.Complete(metric) {
			return metric, nil
		}

		now := s.now()
		changed := false
		if change != nil {
			changed = change(metric)
		}
		transitions := sla.RecomputeStatus(metric, now)
		if finalize {
			at := now
			metric.FinalizedAt = &at
			changed = true
		}
		if !changed && len(transitions) == 0 {
			return metric, nil
		}

		if err := s.recordBreaches(ctx, metric, transitions, now); err != nil {
			return nil, err
		}
		metric.UpdatedAt = now
		err = s.metrics.Update(ctx, metric)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxMetricWriteAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.emitWarnings(ctx, metric, transitions, now)
		return metric, nil
	}
}

func (s *SLAService) recordBreaches(ctx context.Context, metric *domain.SLAMetric, transitions []sla.Transition, now time.Time) error {
	var ticketNumber string
	for _, tr := range transitions {
		if !tr.Breached() {
			continue
		}
		breach := sla.NewBreach(metric, tr, now)
		breach.ID = uuid.NewString()
		if err := s.breaches.Create(ctx, breach); err != nil {
			if errors.Is(err, repository.ErrBreachExists) {
				continue
			}
			return err
		}
		s.stats.RecordSLABreach(string(tr.Dimension))
		if ticketNumber == "" {
			ticketNumber = s.ticketNumber(ctx, metric.TicketID)
		}
		s.logger.Warn("sla breached",
			zap.String("ticket_id", metric.TicketID),
			zap.String("metric_id", metric.ID),
			zap.String("breach_type", string(tr.Dimension)),
			zap.Int("overage_mins", breach.OverageMins))
		publish(ctx, s.dispatcher, now, events.Event{
			Type:         events.EventSLABreach,
			TicketID:     metric.TicketID,
			TicketNumber: ticketNumber,
			Actor:        events.SystemActor,
			Payload: events.SLABreachPayload{
				BreachID:    breach.ID,
				MetricID:    metric.ID,
				BreachType:  breach.BreachType,
				ActualMins:  breach.ActualMins,
				TargetMins:  breach.TargetMins,
				OverageMins: breach.OverageMins,
			},
		})
	}
	return nil
}

func (s *SLAService) emitWarnings(ctx context.Context, metric *domain.SLAMetric, transitions []sla.Transition, now time.Time) {
	var ticketNumber string
	for _, tr := range transitions {
		if tr.To != domain.SLAStatusWarning {
			continue
		}
		s.stats.RecordSLAWarning(string(tr.Dimension))
		if ticketNumber == "" {
			ticketNumber = s.ticketNumber(ctx, metric.TicketID)
		}
		publish(ctx, s.dispatcher, now, events.Event{
			Type:         events.EventSLAWarning,
			TicketID:     metric.TicketID,
			TicketNumber: ticketNumber,
			Actor:        events.SystemActor,
			Payload: events.SLAWarningPayload{
				MetricID:    metric.ID,
				BreachType:  tr.Dimension,
				ElapsedMins: tr.ActualMins,
				TargetMins:  tr.TargetMins,
			},
		})
	}
}

// Acknowledge moves an open breach to Acknowledged.
func (s *SLAService) Acknowledge(ctx context.Context, actor Actor, breachID, notes string) (*domain.SLABreach, error) {
	unlock := s.locks.Lock("breach:" + breachID)
	defer unlock()

	breach, err := s.breaches.GetByID(ctx, breachID)
	if err != nil {
		return nil, mapRepoError(err, "sla breach", map[string]any{"breach_id": breachID})
	}
	now := s.now()
	if err := sla.Acknowledge(breach, actor.ID, notes, now); err != nil {
		return nil, err
	}
	if err := s.breaches.Update(ctx, breach); err != nil {
		return nil, mapRepoError(err, "sla breach", map[string]any{"breach_id": breachID})
	}
	publish(ctx, s.dispatcher, now, events.Event{
		Type:         events.EventSLABreachAcknowledged,
		TicketID:     breach.TicketID,
		TicketNumber: s.ticketNumber(ctx, breach.TicketID),
		Actor:        actor.event(),
		Payload: events.SLABreachAcknowledgedPayload{
			BreachID:        breach.ID,
			BreachType:      breach.BreachType,
			ResolutionNotes: breach.ResolutionNotes,
		},
	})
	return breach, nil
}

// GetTicketMetric returns the metric tracking ticketID.
func (s *SLAService) GetTicketMetric(ctx context.Context, ticketID string) (*domain.SLAMetric, error) {
	metric, err := s.metrics.GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "sla metric", map[string]any{"ticket_id": ticketID})
	}
	return metric, nil
}

// ListBreaches returns breaches matching filter.
func (s *SLAService) ListBreaches(ctx context.Context, filter repository.BreachFilter) ([]domain.SLABreach, error) {
	breaches, err := s.breaches.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return breaches, nil
}

func (s *SLAService) ticketNumber(ctx context.Context, ticketID string) string {
	if s.tickets == nil {
		return ""
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return ""
	}
	return ticket.Number
}
