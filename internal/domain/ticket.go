package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusDraft      TicketStatus = "DRAFT"
	TicketStatusInApproval TicketStatus = "IN_APPROVAL"
	TicketStatusApproved   TicketStatus = "APPROVED"
	TicketStatusRejected   TicketStatus = "REJECTED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// IsTerminal reports whether no further SLA tracking applies to the status.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusCompleted, TicketStatusClosed, TicketStatusRejected:
		return true
	default:
		return false
	}
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	default:
		return false
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	Number            string
	RequesterID       string
	Title             string
	Description       string
	Category          string
	Priority          TicketPriority
	Status            TicketStatus
	WorkflowID        *string
	CurrentStageIndex int
	AssigneeID        *string
	AssigneeRole      *StaffRole
	DueDate           *time.Time
	StatusChangedAt   time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.WorkflowID = cloneString(t.WorkflowID)
	out.AssigneeID = cloneString(t.AssigneeID)
	if t.AssigneeRole != nil {
		role := *t.AssigneeRole
		out.AssigneeRole = &role
	}
	out.DueDate = cloneTime(t.DueDate)
	out.ClosedAt = cloneTime(t.ClosedAt)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
