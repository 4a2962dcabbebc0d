package sla

import (
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// NewBreach builds the breach row for a transition into Breached.
func NewBreach(m *domain.SLAMetric, tr Transition, now time.Time) *domain.SLABreach {
	overage := tr.ActualMins - tr.TargetMins
	if overage < 0 {
		overage = 0
	}
	return &domain.SLABreach{
		MetricID:    m.ID,
		TicketID:    m.TicketID,
		BreachType:  tr.Dimension,
		ActualMins:  tr.ActualMins,
		TargetMins:  tr.TargetMins,
		OverageMins: overage,
		Status:      domain.BreachStatusOpen,
		CreatedAt:   now,
	}
}

// Acknowledge moves an open breach to Acknowledged. Notes are required.
func Acknowledge(b *domain.SLABreach, actorID, notes string, now time.Time) error {
	if b == nil {
		return apperrors.NewNotFound("sla breach", nil)
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return apperrors.NewValidationError("resolution notes are required", map[string]any{"breach_id": b.ID})
	}
	if b.Status != domain.BreachStatusOpen {
		return apperrors.NewValidationError("breach is not open", map[string]any{
			"breach_id": b.ID,
			"status":    b.Status,
		})
	}
	at := now
	b.Status = domain.BreachStatusAcknowledged
	b.AcknowledgedAt = &at
	if actorID != "" {
		actor := actorID
		b.AcknowledgedBy = &actor
	}
	b.ResolutionNotes = notes
	return nil
}
