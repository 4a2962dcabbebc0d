package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// SLAHandler exposes SLA policies and breaches.
type SLAHandler struct {
	sla *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: slaService}
}

// CreatePolicy POST /sla/policies.
func (h *SLAHandler) CreatePolicy(c *fiber.Ctx) error {
	var req dto.CreateSLAPolicyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	policy, err := h.sla.CreatePolicy(c.UserContext(), service.SLAPolicyInput{
		Name:               req.Name,
		Category:           req.Category,
		Priority:           req.Priority,
		WorkflowID:         req.WorkflowID,
		ResponseTimeMins:   req.ResponseTimeMins,
		ResolutionTimeMins: req.ResolutionTimeMins,
		ApprovalTimeMins:   req.ApprovalTimeMins,
		WarningThreshold:   req.WarningThreshold,
		IsActive:           req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": slaPolicyResponse(policy)})
}

// ListPolicies GET /sla/policies?active=true.
func (h *SLAHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.sla.ListPolicies(c.UserContext(), c.QueryBool("active", false))
	if err != nil {
		return err
	}
	items := make([]dto.SLAPolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, slaPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListBreaches GET /sla/breaches.
func (h *SLAHandler) ListBreaches(c *fiber.Ctx) error {
	filter := repository.BreachFilter{
		TicketID: optionalQuery(c, "ticket_id"),
		MetricID: optionalQuery(c, "metric_id"),
	}
	for _, status := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.BreachStatus(status))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	breaches, err := h.sla.ListBreaches(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.SLABreachResponse, 0, len(breaches))
	for i := range breaches {
		items = append(items, slaBreachResponse(&breaches[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AcknowledgeBreach POST /sla/breaches/:id/acknowledge.
func (h *SLAHandler) AcknowledgeBreach(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AcknowledgeBreachRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	breach, err := h.sla.Acknowledge(c.UserContext(), actor, c.Params("id"), req.ResolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaBreachResponse(breach)})
}

func slaPolicyResponse(policy *domain.SLAPolicy) dto.SLAPolicyResponse {
	return dto.SLAPolicyResponse{
		ID:                 policy.ID,
		Name:               policy.Name,
		Category:           policy.Category,
		Priority:           policy.Priority,
		WorkflowID:         policy.WorkflowID,
		ResponseTimeMins:   policy.ResponseTimeMins,
		ResolutionTimeMins: policy.ResolutionTimeMins,
		ApprovalTimeMins:   policy.ApprovalTimeMins,
		WarningThreshold:   policy.WarningThreshold,
		IsActive:           policy.IsActive,
		CreatedAt:          policy.CreatedAt,
	}
}

func slaMetricResponse(metric *domain.SLAMetric) dto.SLAMetricResponse {
	return dto.SLAMetricResponse{
		ID:                       metric.ID,
		TicketID:                 metric.TicketID,
		PolicyID:                 metric.PolicyID,
		TicketCreatedAt:          metric.TicketCreatedAt,
		FirstResponseAt:          metric.FirstResponseAt,
		ResolvedAt:               metric.ResolvedAt,
		ApprovalCompletedAt:      metric.ApprovalCompletedAt,
		ResponseTimeMins:         metric.ResponseTimeMins,
		ResolutionTimeMins:       metric.ResolutionTimeMins,
		ApprovalTimeMins:         metric.ApprovalTimeMins,
		TargetResponseTimeMins:   metric.TargetResponseTimeMins,
		TargetResolutionTimeMins: metric.TargetResolutionTimeMins,
		TargetApprovalTimeMins:   metric.TargetApprovalTimeMins,
		WarningThreshold:         metric.WarningThreshold,
		ResponseStatus:           metric.ResponseStatus,
		ResolutionStatus:         metric.ResolutionStatus,
		ApprovalStatus:           metric.ApprovalStatus,
		Status:                   metric.Status,
		FinalizedAt:              metric.FinalizedAt,
		UpdatedAt:                metric.UpdatedAt,
	}
}

func slaBreachResponse(breach *domain.SLABreach) dto.SLABreachResponse {
	return dto.SLABreachResponse{
		ID:              breach.ID,
		MetricID:        breach.MetricID,
		TicketID:        breach.TicketID,
		BreachType:      breach.BreachType,
		ActualMins:      breach.ActualMins,
		TargetMins:      breach.TargetMins,
		OverageMins:     breach.OverageMins,
		Status:          breach.Status,
		AcknowledgedAt:  breach.AcknowledgedAt,
		AcknowledgedBy:  breach.AcknowledgedBy,
		ResolutionNotes: breach.ResolutionNotes,
		CreatedAt:       breach.CreatedAt,
	}
}
