package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints for requesters and staff.
type TicketsHandler struct {
	tickets *service.TicketService
	sla     *service.SLAService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, slaService *service.SLAService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, sla: slaService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	requester := req.RequesterID
	if actor.Type != domain.ActorTypeStaff {
		requester = actor.ID
	}
	ticket, err := h.tickets.Create(c.UserContext(), actor, service.TicketCreateInput{
		RequesterID: requester,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets. Requesters only see their own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter := parseTicketQuery(c)
	if actor.Type != domain.ActorTypeStaff {
		id := actor.ID
		filter.RequesterID = &id
	}
	tickets, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Submit POST /tickets/:id/submit.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.SubmitTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.visibleTicket(c); err != nil {
		return err
	}
	ticket, err := h.tickets.Submit(c.UserContext(), actor, c.Params("id"), req.WorkflowID, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Approve)
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Reject)
}

// Start POST /tickets/:id/start.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.MarkInProgress)
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Complete)
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Close)
}

type transitionFunc func(ctx context.Context, actor service.Actor, ticketID, comment string) (*domain.Ticket, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	ticket, err := fn(c.UserContext(), actor, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.MessageInput{Body: req.Body}
	if req.MessageType != nil {
		input.Type = *req.MessageType
	}
	msg, err := h.tickets.AddMessage(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	msgs, err := h.tickets.ListMessages(c.UserContext(), actor, ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, ticketMessageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	ticket, err := h.visibleTicket(c)
	if err != nil {
		return err
	}
	metric, err := h.sla.GetTicketMetric(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaMetricResponse(metric)})
}

// visibleTicket loads the ticket named by :id, hiding other requesters'
// tickets from users.
func (h *TicketsHandler) visibleTicket(c *fiber.Ctx) (*domain.Ticket, error) {
	actor, err := actorFrom(c)
	if err != nil {
		return nil, err
	}
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if actor.Type != domain.ActorTypeStaff && ticket.RequesterID != actor.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return ticket, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		AssigneeID:  optionalQuery(c, "assignee_id"),
		WorkflowID:  optionalQuery(c, "workflow_id"),
		Category:    optionalQuery(c, "category"),
		SearchTerm:  optionalQuery(c, "q"),
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
	}
	for _, status := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(status))
	}
	for _, priority := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(priority))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                ticket.ID,
		Number:            ticket.Number,
		RequesterID:       ticket.RequesterID,
		Title:             ticket.Title,
		Description:       ticket.Description,
		Category:          ticket.Category,
		Priority:          ticket.Priority,
		Status:            ticket.Status,
		WorkflowID:        ticket.WorkflowID,
		CurrentStageIndex: ticket.CurrentStageIndex,
		AssigneeID:        ticket.AssigneeID,
		AssigneeRole:      ticket.AssigneeRole,
		DueDate:           ticket.DueDate,
		StatusChangedAt:   ticket.StatusChangedAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ClosedAt:          ticket.ClosedAt,
	}
}

func ticketMessageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		MessageType: msg.MessageType,
		AuthorType:  msg.AuthorType,
		AuthorID:    msg.AuthorID,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:        entry.ID,
			Action:    entry.Action,
			ActorType: entry.ActorType,
			ActorID:   entry.ActorID,
			Comment:   entry.Comment,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}
