// Package rules evaluates automation rules against a ticket snapshot. Every
// function here is pure: it returns a Proposal and leaves the ticket alone.
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Kind identifies which rule family produced a proposal.
type Kind string

const (
	KindAssignment     Kind = "assignment"
	KindPrioritization Kind = "prioritization"
	KindEscalation     Kind = "escalation"
)

// Proposal is a set of field changes suggested by one or more rules. Nil
// fields are left untouched by the caller.
type Proposal struct {
	Kind         Kind
	RuleIDs      []string
	RuleNames    []string
	Priority     *domain.TicketPriority
	AssigneeRole *domain.StaffRole
	Method       domain.AssignmentMethod
}

// Empty reports whether the proposal changes nothing.
func (p *Proposal) Empty() bool {
	return p == nil || (p.Priority == nil && p.AssigneeRole == nil)
}

// RuleName joins contributing rule names for events and history.
func (p *Proposal) RuleName() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.RuleNames, ", ")
}

// MatchAssignment returns the first active rule (by Order) whose category
// equals the ticket's. Rules are not combined.
func MatchAssignment(rules []domain.AssignmentRule, ticket *domain.Ticket) *Proposal {
	if ticket == nil {
		return nil
	}
	sorted := append([]domain.AssignmentRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i].Order, sorted[i].ID, sorted[j].Order, sorted[j].ID)
	})
	for _, rule := range sorted {
		if !rule.IsActive || rule.Category != ticket.Category {
			continue
		}
		role := rule.Role
		method := rule.Method
		if method == "" {
			method = domain.AssignmentMethodRoundRobin
		}
		return &Proposal{
			Kind:         KindAssignment,
			RuleIDs:      []string{rule.ID},
			RuleNames:    []string{rule.Name},
			AssigneeRole: &role,
			Method:       method,
		}
	}
	return nil
}

// Prioritize returns a proposal for the first active rule whose keyword occurs
// in the title or description, ignoring case. A rule that would not change the
// ticket's priority still wins and yields nil.
func Prioritize(rules []domain.PrioritizationRule, ticket *domain.Ticket) *Proposal {
	if ticket == nil {
		return nil
	}
	sorted := append([]domain.PrioritizationRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i].Order, sorted[i].ID, sorted[j].Order, sorted[j].ID)
	})
	text := strings.ToLower(ticket.Title + " " + ticket.Description)
	for _, rule := range sorted {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if !rule.IsActive || keyword == "" || !strings.Contains(text, keyword) {
			continue
		}
		if rule.Priority == ticket.Priority {
			return nil
		}
		priority := rule.Priority
		return &Proposal{
			Kind:      KindPrioritization,
			RuleIDs:   []string{rule.ID},
			RuleNames: []string{rule.Name},
			Priority:  &priority,
		}
	}
	return nil
}

// EvaluateEscalations applies every matching active rule in ascending Order
// (ties by id). Later rules override earlier ones field by field. The merged
// result is diffed against the ticket so a ticket that already carries the
// escalated values yields nil.
func EvaluateEscalations(rules []domain.EscalationRule, ticket *domain.Ticket, now time.Time) *Proposal {
	if ticket == nil {
		return nil
	}
	sorted := append([]domain.EscalationRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i].Order, sorted[i].ID, sorted[j].Order, sorted[j].ID)
	})

	hours := HoursSince(ticket.StatusChangedAt, now)
	merged := &Proposal{Kind: KindEscalation}
	for _, rule := range sorted {
		if !rule.IsActive {
			continue
		}
		if rule.Priority != ticket.Priority || rule.Status != ticket.Status || hours < rule.Hours {
			continue
		}
		merged.RuleIDs = append(merged.RuleIDs, rule.ID)
		merged.RuleNames = append(merged.RuleNames, rule.Name)
		if rule.EscalateToRole != "" {
			role := rule.EscalateToRole
			merged.AssigneeRole = &role
		}
		if rule.NewPriority != nil {
			priority := *rule.NewPriority
			merged.Priority = &priority
		}
	}

	if merged.AssigneeRole != nil && ticket.AssigneeRole != nil && *merged.AssigneeRole == *ticket.AssigneeRole {
		merged.AssigneeRole = nil
	}
	if merged.Priority != nil && *merged.Priority == ticket.Priority {
		merged.Priority = nil
	}
	if merged.Empty() {
		return nil
	}
	return merged
}

// HoursSince returns fractional hours elapsed from since to now, never negative.
func HoursSince(since, now time.Time) float64 {
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return now.Sub(since).Hours()
}

// SortCandidates orders staff deterministically for round-robin: oldest first,
// ties by id.
func SortCandidates(staff []*domain.StaffMember) {
	sort.SliceStable(staff, func(i, j int) bool {
		if !staff[i].CreatedAt.Equal(staff[j].CreatedAt) {
			return staff[i].CreatedAt.Before(staff[j].CreatedAt)
		}
		return staff[i].ID < staff[j].ID
	})
}

// PickRoundRobin maps a reserved cursor slot (1 for the first assignment of a
// role) onto candidates, cycling through all of them before repeating.
func PickRoundRobin(candidates []*domain.StaffMember, slot int64) *domain.StaffMember {
	n := int64(len(candidates))
	if n == 0 {
		return nil
	}
	idx := (slot - 1) % n
	if idx < 0 {
		idx += n
	}
	return candidates[idx]
}

func less(orderA int, idA string, orderB int, idB string) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	return idA < idB
}
