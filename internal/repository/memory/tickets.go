// Package memory provides in-process implementations of the repository
// interfaces. They back development mode when no database is configured and
// the service tests. Every method copies values in and out so callers never
// share state with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// TicketRepository is an in-memory repository.TicketRepository.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	history repository.TicketHistoryRepository
}

// NewTicketRepository builds an empty store. The WithHistory writes append to
// history while the ticket lock is held; a nil history drops the entries.
func NewTicketRepository(history repository.TicketHistoryRepository) *TicketRepository {
	return &TicketRepository{
		tickets: make(map[string]*domain.Ticket),
		history: history,
	}
}

// Create implements repository.TicketRepository.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.CreateWithHistory(ctx, ticket, nil)
}

// CreateWithHistory implements repository.TicketRepository.
func (r *TicketRepository) CreateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.tickets {
		if existing.Number == ticket.Number {
			return repository.ErrDuplicate
		}
	}
	if err := r.appendLocked(ctx, entry); err != nil {
		return err
	}
	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

// Update implements repository.TicketRepository.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.UpdateWithHistory(ctx, ticket, nil)
}

// UpdateWithHistory implements repository.TicketRepository.
func (r *TicketRepository) UpdateWithHistory(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	if err := r.appendLocked(ctx, entry); err != nil {
		return err
	}
	ticket.Version++
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *TicketRepository) appendLocked(ctx context.Context, entry *domain.TicketHistory) error {
	if entry == nil || r.history == nil {
		return nil
	}
	return r.history.Append(ctx, entry)
}

// GetByID implements repository.TicketRepository.
func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

// ListWithFilter implements repository.TicketRepository.
func (r *TicketRepository) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if ticketMatches(ticket, filter) {
			matched = append(matched, *ticket.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, filter.Limit, filter.Offset, 20), nil
}

func ticketMatches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
		return false
	}
	if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if f.WorkflowID != nil && (t.WorkflowID == nil || *t.WorkflowID != *f.WorkflowID) {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		text := strings.ToLower(t.Title + " " + t.Description)
		if term != "" && !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset, defaultLimit int) []T {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
