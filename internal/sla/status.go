package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DefaultWarningThreshold applies when a policy leaves the threshold unset.
const DefaultWarningThreshold = 80

// Transition records a dimension whose status became more severe.
type Transition struct {
	Dimension  domain.BreachType
	From       domain.SLAStatus
	To         domain.SLAStatus
	ActualMins int
	TargetMins int
}

// Breached reports whether the transition crossed into Breached.
func (t Transition) Breached() bool {
	return t.To == domain.SLAStatusBreached && t.From != domain.SLAStatusBreached
}

// dimension exposes the fields of one tracked timer on a metric.
type dimension struct {
	completedAt *time.Time
	duration    **int
	target      *int
	status      *domain.SLAStatus
}

func dimensionOf(m *domain.SLAMetric, t domain.BreachType) dimension {
	switch t {
	case domain.BreachTypeResponse:
		return dimension{m.FirstResponseAt, &m.ResponseTimeMins, m.TargetResponseTimeMins, &m.ResponseStatus}
	case domain.BreachTypeResolution:
		return dimension{m.ResolvedAt, &m.ResolutionTimeMins, m.TargetResolutionTimeMins, &m.ResolutionStatus}
	default:
		return dimension{m.ApprovalCompletedAt, &m.ApprovalTimeMins, m.TargetApprovalTimeMins, &m.ApprovalStatus}
	}
}

// ElapsedMinutes returns whole minutes from start to end, truncated and never
// negative.
func ElapsedMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// Classify maps an elapsed duration onto a status. Warning is inclusive of the
// threshold; breach requires strictly exceeding the target.
func Classify(actual, target, threshold int) domain.SLAStatus {
	if actual > target {
		return domain.SLAStatusBreached
	}
	if threshold > 100 {
		threshold = 100
	}
	if threshold > 0 && actual*100 >= target*threshold {
		return domain.SLAStatusWarning
	}
	return domain.SLAStatusWithin
}

// RecomputeStatus refreshes the per-dimension and overall statuses of m at now
// and returns the dimensions whose status became more severe. Statuses never
// decrease. Completed dimensions are judged on their recorded duration.
// Finalized metrics are left untouched.
func RecomputeStatus(m *domain.SLAMetric, now time.Time) []Transition {
	if m == nil || m.Finalized() {
		return nil
	}
	var transitions []Transition
	overall := domain.SLAStatusWithin
	for _, t := range domain.BreachTypes {
		d := dimensionOf(m, t)
		prev := domain.WorstStatus(*d.status, domain.SLAStatusWithin)
		next := prev
		if d.target != nil {
			actual := ElapsedMinutes(m.TicketCreatedAt, now)
			if d.completedAt != nil {
				if *d.duration == nil {
					mins := ElapsedMinutes(m.TicketCreatedAt, *d.completedAt)
					*d.duration = &mins
				}
				actual = **d.duration
			}
			next = domain.WorstStatus(prev, Classify(actual, *d.target, m.WarningThreshold))
			if next != prev {
				transitions = append(transitions, Transition{
					Dimension:  t,
					From:       prev,
					To:         next,
					ActualMins: actual,
					TargetMins: *d.target,
				})
			}
		}
		*d.status = next
		overall = domain.WorstStatus(overall, next)
	}
	m.Status = overall
	return transitions
}

// StampMilestone records the completion time of one dimension. It returns
// false when the milestone was already stamped or the metric is finalized.
func StampMilestone(m *domain.SLAMetric, t domain.BreachType, at time.Time) bool {
	if m == nil || m.Finalized() {
		return false
	}
	stamp := at
	mins := ElapsedMinutes(m.TicketCreatedAt, at)
	switch t {
	case domain.BreachTypeResponse:
		if m.FirstResponseAt != nil {
			return false
		}
		m.FirstResponseAt = &stamp
		m.ResponseTimeMins = &mins
	case domain.BreachTypeResolution:
		if m.ResolvedAt != nil {
			return false
		}
		m.ResolvedAt = &stamp
		m.ResolutionTimeMins = &mins
	case domain.BreachTypeApproval:
		if m.ApprovalCompletedAt != nil {
			return false
		}
		m.ApprovalCompletedAt = &stamp
		m.ApprovalTimeMins = &mins
	default:
		return false
	}
	return true
}

// CarryMilestones stamps onto dst every milestone already recorded on src.
// Durations are measured against dst's own ticket creation time.
func CarryMilestones(dst, src *domain.SLAMetric) {
	if dst == nil || src == nil {
		return
	}
	for _, t := range domain.BreachTypes {
		if at := dimensionOf(src, t).completedAt; at != nil {
			StampMilestone(dst, t, *at)
		}
	}
}

// Complete reports whether every dimension that has a target has been stamped.
func Complete(m *domain.SLAMetric) bool {
	if m == nil {
		return false
	}
	for _, t := range domain.BreachTypes {
		d := dimensionOf(m, t)
		if d.target != nil && d.completedAt == nil {
			return false
		}
	}
	return true
}

// NewMetric snapshots the targets of policy for a ticket created at createdAt.
func NewMetric(ticketID string, policy *domain.SLAPolicy, createdAt time.Time) *domain.SLAMetric {
	threshold := policy.WarningThreshold
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	return &domain.SLAMetric{
		TicketID:                 ticketID,
		PolicyID:                 policy.ID,
		TicketCreatedAt:          createdAt,
		TargetResponseTimeMins:   copyInt(policy.ResponseTimeMins),
		TargetResolutionTimeMins: copyInt(policy.ResolutionTimeMins),
		TargetApprovalTimeMins:   copyInt(policy.ApprovalTimeMins),
		WarningThreshold:         threshold,
		ResponseStatus:           domain.SLAStatusWithin,
		ResolutionStatus:         domain.SLAStatusWithin,
		ApprovalStatus:           domain.SLAStatusWithin,
		Status:                   domain.SLAStatusWithin,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
