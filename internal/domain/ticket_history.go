package domain

import "time"

// TicketAction captures what happened in a history entry.
type TicketAction string

const (
	ActionCreated        TicketAction = "CREATED"
	ActionSubmitted      TicketAction = "SUBMITTED"
	ActionApproved       TicketAction = "APPROVED"
	ActionRejected       TicketAction = "REJECTED"
	ActionStatusChange   TicketAction = "STATUS_CHANGE"
	ActionAssigneeChange TicketAction = "ASSIGNEE_CHANGE"
	ActionPriorityChange TicketAction = "PRIORITY_CHANGE"
	ActionEscalated      TicketAction = "ESCALATED"
)

// TicketHistory is an immutable audit trail entry. Entries live in their own
// append-only store keyed by ticket id.
type TicketHistory struct {
	ID        string
	TicketID  string
	ActorType ActorType
	ActorID   *string
	Action    TicketAction
	Comment   string
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}
