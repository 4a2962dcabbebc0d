package domain

import "time"

// SLAStatus is the health of one SLA dimension or of a whole metric.
type SLAStatus string

const (
	SLAStatusWithin   SLAStatus = "WITHIN_SLA"
	SLAStatusWarning  SLAStatus = "WARNING"
	SLAStatusBreached SLAStatus = "BREACHED"
)

// Severity orders statuses: WithinSLA < Warning < Breached.
func (s SLAStatus) Severity() int {
	switch s {
	case SLAStatusWarning:
		return 1
	case SLAStatusBreached:
		return 2
	default:
		return 0
	}
}

// WorstStatus returns the more severe of a and b.
func WorstStatus(a, b SLAStatus) SLAStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	if a == "" {
		return SLAStatusWithin
	}
	return a
}

// BreachType names the timing dimension that was exceeded.
type BreachType string

const (
	BreachTypeResponse   BreachType = "RESPONSE_TIME"
	BreachTypeResolution BreachType = "RESOLUTION_TIME"
	BreachTypeApproval   BreachType = "APPROVAL_TIME"
)

// BreachTypes lists dimensions in evaluation order.
var BreachTypes = []BreachType{BreachTypeResponse, BreachTypeResolution, BreachTypeApproval}

// BreachStatus tracks the acknowledgment lifecycle of a breach.
type BreachStatus string

const (
	BreachStatusOpen         BreachStatus = "OPEN"
	BreachStatusAcknowledged BreachStatus = "ACKNOWLEDGED"
	BreachStatusResolved     BreachStatus = "RESOLVED"
)

// SLAPolicy defines time targets for tickets matching its criteria. Nil
// criteria are wildcards.
type SLAPolicy struct {
	ID                 string
	Name               string
	Category           *string
	Priority           *TicketPriority
	WorkflowID         *string
	ResponseTimeMins   *int
	ResolutionTimeMins *int
	ApprovalTimeMins   *int
	WarningThreshold   int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SLAMetric tracks one ticket against the targets snapshotted from a policy.
type SLAMetric struct {
	ID       string
	TicketID string
	PolicyID string

	TicketCreatedAt     time.Time
	FirstResponseAt     *time.Time
	ResolvedAt          *time.Time
	ApprovalCompletedAt *time.Time

	ResponseTimeMins   *int
	ResolutionTimeMins *int
	ApprovalTimeMins   *int

	TargetResponseTimeMins   *int
	TargetResolutionTimeMins *int
	TargetApprovalTimeMins   *int
	WarningThreshold         int

	ResponseStatus   SLAStatus
	ResolutionStatus SLAStatus
	ApprovalStatus   SLAStatus
	Status           SLAStatus

	FinalizedAt *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Finalized reports whether the metric no longer accepts updates.
func (m *SLAMetric) Finalized() bool {
	return m != nil && m.FinalizedAt != nil
}

// Clone returns a deep copy of m.
func (m *SLAMetric) Clone() *SLAMetric {
	if m == nil {
		return nil
	}
	out := *m
	out.FirstResponseAt = cloneTime(m.FirstResponseAt)
	out.ResolvedAt = cloneTime(m.ResolvedAt)
	out.ApprovalCompletedAt = cloneTime(m.ApprovalCompletedAt)
	out.ResponseTimeMins = cloneInt(m.ResponseTimeMins)
	out.ResolutionTimeMins = cloneInt(m.ResolutionTimeMins)
	out.ApprovalTimeMins = cloneInt(m.ApprovalTimeMins)
	out.TargetResponseTimeMins = cloneInt(m.TargetResponseTimeMins)
	out.TargetResolutionTimeMins = cloneInt(m.TargetResolutionTimeMins)
	out.TargetApprovalTimeMins = cloneInt(m.TargetApprovalTimeMins)
	out.FinalizedAt = cloneTime(m.FinalizedAt)
	return &out
}

// SLABreach records a confirmed exceedance. At most one exists per
// (MetricID, BreachType).
type SLABreach struct {
	ID              string
	MetricID        string
	TicketID        string
	BreachType      BreachType
	ActualMins      int
	TargetMins      int
	OverageMins     int
	Status          BreachStatus
	AcknowledgedAt  *time.Time
	AcknowledgedBy  *string
	ResolutionNotes string
	CreatedAt       time.Time
}
