package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func prioPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func TestMatchPolicyPrefersSpecificity(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.SLAPolicy{
		{ID: "default", IsActive: true, CreatedAt: base.Add(48 * time.Hour)},
		{ID: "hardware", Category: strPtr("Hardware"), IsActive: true, CreatedAt: base},
		{ID: "hardware-high", Category: strPtr("Hardware"), Priority: prioPtr(domain.TicketPriorityHigh), IsActive: true, CreatedAt: base},
		{ID: "inactive-exact", Category: strPtr("Hardware"), Priority: prioPtr(domain.TicketPriorityHigh),
			WorkflowID: strPtr("wf"), IsActive: false, CreatedAt: base},
		{ID: "network", Category: strPtr("Network"), IsActive: true, CreatedAt: base},
	}

	got := MatchPolicy(policies, &domain.Ticket{Category: "Hardware", Priority: domain.TicketPriorityHigh, WorkflowID: strPtr("wf")})
	require.NotNil(t, got)
	assert.Equal(t, "hardware-high", got.ID)

	got = MatchPolicy(policies, &domain.Ticket{Category: "Hardware", Priority: domain.TicketPriorityLow})
	require.NotNil(t, got)
	assert.Equal(t, "hardware", got.ID)

	got = MatchPolicy(policies, &domain.Ticket{Category: "Facilities"})
	require.NotNil(t, got)
	assert.Equal(t, "default", got.ID)

	assert.Nil(t, MatchPolicy(policies[1:2], &domain.Ticket{Category: "Facilities"}))
}

func TestMatchPolicyTieGoesToNewest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.SLAPolicy{
		{ID: "old", Category: strPtr("Hardware"), IsActive: true, CreatedAt: base},
		{ID: "new", Category: strPtr("Hardware"), IsActive: true, CreatedAt: base.Add(time.Hour)},
		{ID: "priority", Priority: prioPtr(domain.TicketPriorityMedium), IsActive: true, CreatedAt: base.Add(30 * time.Minute)},
	}
	got := MatchPolicy(policies, &domain.Ticket{Category: "Hardware", Priority: domain.TicketPriorityMedium})
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)
}

func TestSupersedes(t *testing.T) {
	category := &domain.SLAPolicy{ID: "software", Category: strPtr("Software"), IsActive: true}
	scoped := &domain.SLAPolicy{ID: "software-wf", Category: strPtr("Software"), WorkflowID: strPtr("wf"), IsActive: true}
	sibling := &domain.SLAPolicy{ID: "other-wf", Category: strPtr("Software"), WorkflowID: strPtr("wf"), IsActive: true}
	high := &domain.SLAPolicy{ID: "high", Priority: prioPtr(domain.TicketPriorityHigh), IsActive: true}
	submitted := &domain.Ticket{Category: "Software", Priority: domain.TicketPriorityMedium, WorkflowID: strPtr("wf")}

	tests := []struct {
		name      string
		candidate *domain.SLAPolicy
		current   *domain.SLAPolicy
		want      bool
	}{
		{name: "no current metric", candidate: scoped, want: true},
		{name: "more specific", candidate: scoped, current: category, want: true},
		{name: "same policy", candidate: scoped, current: scoped, want: false},
		{name: "equal specificity keeps current", candidate: sibling, current: scoped, want: false},
		{name: "less specific", candidate: category, current: scoped, want: false},
		{name: "current no longer matches", candidate: category, current: high, want: true},
		{name: "candidate does not match", candidate: high, current: category, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Supersedes(tc.candidate, tc.current, submitted))
		})
	}
}

func TestCarryMilestones(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	src := NewMetric("t1", &domain.SLAPolicy{ID: "p1", ResponseTimeMins: intPtr(60)}, t0)
	require.True(t, StampMilestone(src, domain.BreachTypeResponse, t0.Add(25*time.Minute)))

	dst := NewMetric("t1", &domain.SLAPolicy{ID: "p2", ResponseTimeMins: intPtr(30), ApprovalTimeMins: intPtr(60)}, t0)
	CarryMilestones(dst, src)

	require.NotNil(t, dst.FirstResponseAt)
	require.NotNil(t, dst.ResponseTimeMins)
	assert.Equal(t, 25, *dst.ResponseTimeMins)
	assert.Nil(t, dst.ApprovalCompletedAt)
	assert.False(t, Complete(dst))
}

func TestResponseWarningThenBreach(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	policy := &domain.SLAPolicy{ID: "p1", ResponseTimeMins: intPtr(60), WarningThreshold: 80}
	metric := NewMetric("t1", policy, t0)
	metric.ID = "m1"

	transitions := RecomputeStatus(metric, t0.Add(50*time.Minute))
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.BreachTypeResponse, transitions[0].Dimension)
	assert.Equal(t, domain.SLAStatusWarning, transitions[0].To)
	assert.False(t, transitions[0].Breached())
	assert.Equal(t, domain.SLAStatusWarning, metric.Status)

	assert.Empty(t, RecomputeStatus(metric, t0.Add(55*time.Minute)), "warning is reported once")

	transitions = RecomputeStatus(metric, t0.Add(65*time.Minute))
	require.Len(t, transitions, 1)
	require.True(t, transitions[0].Breached())
	assert.Equal(t, domain.SLAStatusBreached, metric.Status)

	breach := NewBreach(metric, transitions[0], t0.Add(65*time.Minute))
	assert.Equal(t, domain.BreachTypeResponse, breach.BreachType)
	assert.Equal(t, 65, breach.ActualMins)
	assert.Equal(t, 60, breach.TargetMins)
	assert.Equal(t, 5, breach.OverageMins)
	assert.Equal(t, domain.BreachStatusOpen, breach.Status)
	assert.Equal(t, "m1", breach.MetricID)

	assert.Empty(t, RecomputeStatus(metric, t0.Add(90*time.Minute)))
}

func TestRecomputeIsMonotonicAfterCompletion(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	policy := &domain.SLAPolicy{ID: "p1", ResponseTimeMins: intPtr(60), ResolutionTimeMins: intPtr(600), WarningThreshold: 80}
	metric := NewMetric("t1", policy, t0)

	RecomputeStatus(metric, t0.Add(70*time.Minute))
	require.Equal(t, domain.SLAStatusBreached, metric.ResponseStatus)

	require.True(t, StampMilestone(metric, domain.BreachTypeResponse, t0.Add(80*time.Minute)))
	assert.False(t, StampMilestone(metric, domain.BreachTypeResponse, t0.Add(90*time.Minute)))
	assert.Equal(t, 80, *metric.ResponseTimeMins)

	RecomputeStatus(metric, t0.Add(100*time.Minute))
	assert.Equal(t, domain.SLAStatusBreached, metric.ResponseStatus)
	assert.Equal(t, domain.SLAStatusWithin, metric.ResolutionStatus)
	assert.Equal(t, domain.SLAStatusBreached, metric.Status)
}

func TestCompletedDimensionUsesRecordedDuration(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	policy := &domain.SLAPolicy{ID: "p1", ApprovalTimeMins: intPtr(120), WarningThreshold: 50}
	metric := NewMetric("t1", policy, t0)

	require.True(t, StampMilestone(metric, domain.BreachTypeApproval, t0.Add(30*time.Minute)))
	assert.True(t, Complete(metric))

	assert.Empty(t, RecomputeStatus(metric, t0.Add(10*time.Hour)))
	assert.Equal(t, domain.SLAStatusWithin, metric.ApprovalStatus)
}

func TestFinalizedMetricIsImmutable(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	metric := NewMetric("t1", &domain.SLAPolicy{ID: "p1", ResponseTimeMins: intPtr(10)}, t0)
	finalized := t0.Add(time.Minute)
	metric.FinalizedAt = &finalized

	assert.Nil(t, RecomputeStatus(metric, t0.Add(time.Hour)))
	assert.False(t, StampMilestone(metric, domain.BreachTypeResponse, t0.Add(time.Hour)))
	assert.Equal(t, domain.SLAStatusWithin, metric.Status)
	assert.Equal(t, DefaultWarningThreshold, metric.WarningThreshold)
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		actual, target, threshold int
		want                      domain.SLAStatus
	}{
		{47, 60, 80, domain.SLAStatusWithin},
		{48, 60, 80, domain.SLAStatusWarning},
		{60, 60, 80, domain.SLAStatusWarning},
		{61, 60, 80, domain.SLAStatusBreached},
		{59, 60, 0, domain.SLAStatusWithin},
		{60, 60, 150, domain.SLAStatusWarning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.actual, tt.target, tt.threshold), "%+v", tt)
	}
}

func TestAcknowledge(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	breach := &domain.SLABreach{ID: "b1", Status: domain.BreachStatusOpen}

	err := Acknowledge(breach, "staff-1", "   ", now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, domain.BreachStatusOpen, breach.Status)

	require.NoError(t, Acknowledge(breach, "staff-1", "called the vendor", now))
	assert.Equal(t, domain.BreachStatusAcknowledged, breach.Status)
	require.NotNil(t, breach.AcknowledgedAt)
	require.NotNil(t, breach.AcknowledgedBy)
	assert.Equal(t, "staff-1", *breach.AcknowledgedBy)
	assert.Equal(t, "called the vendor", breach.ResolutionNotes)

	err = Acknowledge(breach, "staff-2", "again", now)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, "staff-1", *breach.AcknowledgedBy)
}
