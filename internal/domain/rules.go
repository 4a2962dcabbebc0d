package domain

import "time"

// AssignmentMethod selects how an assignee is picked among role members.
type AssignmentMethod string

const (
	AssignmentMethodRoundRobin AssignmentMethod = "ROUND_ROBIN"
)

// AssignmentRule maps a ticket category to a staff role.
type AssignmentRule struct {
	ID        string
	Name      string
	Category  string
	Role      StaffRole
	Method    AssignmentMethod
	Order     int
	IsActive  bool
	CreatedAt time.Time
}

// PrioritizationRule maps a keyword found in title or description to a priority.
type PrioritizationRule struct {
	ID        string
	Name      string
	Keyword   string
	Priority  TicketPriority
	Order     int
	IsActive  bool
	CreatedAt time.Time
}

// EscalationRule fires when a ticket stays in a priority/status combination
// for at least Hours.
type EscalationRule struct {
	ID             string
	Name           string
	Priority       TicketPriority
	Status         TicketStatus
	Hours          float64
	EscalateToRole StaffRole
	NewPriority    *TicketPriority
	Order          int
	IsActive       bool
	CreatedAt      time.Time
}
