package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID string                `json:"requester_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	DueDate     *time.Time            `json:"due_date"`
}

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	WorkflowID string `json:"workflow_id"`
	Comment    string `json:"comment"`
}

// TransitionRequest carries the optional comment of a workflow action.
type TransitionRequest struct {
	Comment string `json:"comment"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID                string                `json:"id"`
	Number            string                `json:"number"`
	RequesterID       string                `json:"requester_id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Category          string                `json:"category"`
	Priority          domain.TicketPriority `json:"priority"`
	Status            domain.TicketStatus   `json:"status"`
	WorkflowID        *string               `json:"workflow_id"`
	CurrentStageIndex int                   `json:"current_stage_index"`
	AssigneeID        *string               `json:"assignee_id"`
	AssigneeRole      *domain.StaffRole     `json:"assignee_role"`
	DueDate           *time.Time            `json:"due_date"`
	StatusChangedAt   time.Time             `json:"status_changed_at"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ClosedAt          *time.Time            `json:"closed_at"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.ActorType         `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string                    `json:"body"`
	MessageType *domain.TicketMessageType `json:"message_type,omitempty"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID        string              `json:"id"`
	Action    domain.TicketAction `json:"action"`
	ActorType domain.ActorType    `json:"actor_type"`
	ActorID   *string             `json:"actor_id"`
	Comment   string              `json:"comment,omitempty"`
	OldValue  map[string]any      `json:"old_value"`
	NewValue  map[string]any      `json:"new_value"`
	CreatedAt time.Time           `json:"created_at"`
}
