package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AdminHandler manages workflows, automation rules and staff.
type AdminHandler struct {
	admin *service.AdminService
	auth  *service.AuthService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService, authService *service.AuthService) *AdminHandler {
	return &AdminHandler{admin: adminService, auth: authService}
}

// CreateWorkflow POST /workflows.
func (h *AdminHandler) CreateWorkflow(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkflowRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	wf, err := h.admin.CreateWorkflow(c.UserContext(), actor, req.Name, req.Stages)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": workflowResponse(wf)})
}

// GetWorkflow GET /workflows/:id.
func (h *AdminHandler) GetWorkflow(c *fiber.Ctx) error {
	wf, err := h.admin.GetWorkflow(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workflowResponse(wf)})
}

// ListWorkflows GET /workflows.
func (h *AdminHandler) ListWorkflows(c *fiber.Ctx) error {
	workflows, err := h.admin.ListWorkflows(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.WorkflowResponse, 0, len(workflows))
	for i := range workflows {
		items = append(items, workflowResponse(&workflows[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateAssignmentRule POST /rules/assignment.
func (h *AdminHandler) CreateAssignmentRule(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateAssignmentRuleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rule, err := h.admin.CreateAssignmentRule(c.UserContext(), actor, service.AssignmentRuleInput{
		Name:     req.Name,
		Category: req.Category,
		Role:     req.Role,
		Method:   req.Method,
		Order:    req.Order,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AssignmentRuleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		Category:  rule.Category,
		Role:      rule.Role,
		Method:    rule.Method,
		Order:     rule.Order,
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
	}})
}

// CreatePrioritizationRule POST /rules/prioritization.
func (h *AdminHandler) CreatePrioritizationRule(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreatePrioritizationRuleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rule, err := h.admin.CreatePrioritizationRule(c.UserContext(), actor, service.PrioritizationRuleInput{
		Name:     req.Name,
		Keyword:  req.Keyword,
		Priority: req.Priority,
		Order:    req.Order,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.PrioritizationRuleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		Keyword:   rule.Keyword,
		Priority:  rule.Priority,
		Order:     rule.Order,
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
	}})
}

// CreateEscalationRule POST /rules/escalation.
func (h *AdminHandler) CreateEscalationRule(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateEscalationRuleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rule, err := h.admin.CreateEscalationRule(c.UserContext(), actor, service.EscalationRuleInput{
		Name:           req.Name,
		Priority:       req.Priority,
		Status:         req.Status,
		Hours:          req.Hours,
		EscalateToRole: req.EscalateToRole,
		NewPriority:    req.NewPriority,
		Order:          req.Order,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.EscalationRuleResponse{
		ID:             rule.ID,
		Name:           rule.Name,
		Priority:       rule.Priority,
		Status:         rule.Status,
		Hours:          rule.Hours,
		EscalateToRole: rule.EscalateToRole,
		NewPriority:    rule.NewPriority,
		Order:          rule.Order,
		IsActive:       rule.IsActive,
		CreatedAt:      rule.CreatedAt,
	}})
}

// CreateStaff POST /staff.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateStaffRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.admin.CreateStaffMember(c.UserContext(), actor, req.Name, req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": staffResponse(member)})
}

// ListStaff GET /staff?role=AGENT&active=true.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pageSize := parseInt(c.Query("page_size"), 50)
	filters := service.StaffListFilters{
		Limit:  pageSize,
		Offset: (parseInt(c.Query("page"), 1) - 1) * pageSize,
	}
	if role := optionalQuery(c, "role"); role != nil {
		r := domain.StaffRole(*role)
		filters.Role = &r
	}
	if c.Query("active") != "" {
		active := c.QueryBool("active")
		filters.Active = &active
	}
	members, err := h.admin.ListStaffMembers(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	items := make([]dto.StaffResponse, 0, len(members))
	for i := range members {
		items = append(items, staffResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// IssueToken POST /staff/:id/token.
func (h *AdminHandler) IssueToken(c *fiber.Ctx) error {
	token, exp, err := h.auth.IssueStaffToken(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: exp}})
}

func workflowResponse(wf *domain.Workflow) dto.WorkflowResponse {
	return dto.WorkflowResponse{
		ID:        wf.ID,
		Name:      wf.Name,
		Stages:    wf.Stages,
		CreatedAt: wf.CreatedAt,
	}
}

func staffResponse(member *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:        member.ID,
		Name:      member.Name,
		Email:     member.Email,
		Role:      member.Role,
		Active:    member.Active,
		CreatedAt: member.CreatedAt,
	}
}
