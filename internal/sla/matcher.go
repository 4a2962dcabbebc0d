// Package sla holds the pure SLA rules: policy matching, metric status
// computation, and breach construction. Persistence and events live in the
// service layer.
package sla

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MatchPolicy returns the most specific active policy matching ticket, or nil.
// Nil criteria act as wildcards. Specificity is the number of non-nil criteria;
// ties go to the most recently created policy, then the larger id.
func MatchPolicy(policies []domain.SLAPolicy, ticket *domain.Ticket) *domain.SLAPolicy {
	if ticket == nil {
		return nil
	}
	var (
		best      *domain.SLAPolicy
		bestScore = -1
	)
	for i := range policies {
		policy := &policies[i]
		score, ok := specificity(policy, ticket)
		if !ok {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && newer(policy, best)) {
			best = policy
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Supersedes reports whether candidate should replace current as the policy
// tracking ticket. Candidate must match; current is replaced when it no longer
// matches or is strictly less specific. Ties keep current.
func Supersedes(candidate, current *domain.SLAPolicy, ticket *domain.Ticket) bool {
	if candidate == nil || ticket == nil {
		return false
	}
	score, ok := specificity(candidate, ticket)
	if !ok {
		return false
	}
	if current == nil || current.ID == candidate.ID {
		return current == nil
	}
	currentScore, ok := specificity(current, ticket)
	return !ok || score > currentScore
}

func specificity(policy *domain.SLAPolicy, ticket *domain.Ticket) (int, bool) {
	if !policy.IsActive {
		return 0, false
	}
	score := 0
	if policy.Category != nil {
		if *policy.Category != ticket.Category {
			return 0, false
		}
		score++
	}
	if policy.Priority != nil {
		if *policy.Priority != ticket.Priority {
			return 0, false
		}
		score++
	}
	if policy.WorkflowID != nil {
		if ticket.WorkflowID == nil || *policy.WorkflowID != *ticket.WorkflowID {
			return 0, false
		}
		score++
	}
	return score, true
}

func newer(a, b *domain.SLAPolicy) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
