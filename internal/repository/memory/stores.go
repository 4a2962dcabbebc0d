package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// HistoryRepository is an append-only in-memory audit log.
type HistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketHistory
}

// NewHistoryRepository builds an empty log.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{entries: make(map[string][]domain.TicketHistory)}
}

// Append implements repository.TicketHistoryRepository.
func (r *HistoryRepository) Append(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := *history
	entry.OldValue = copyMap(history.OldValue)
	entry.NewValue = copyMap(history.NewValue)
	r.entries[history.TicketID] = append(r.entries[history.TicketID], entry)
	return nil
}

// ListByTicket implements repository.TicketHistoryRepository.
func (r *HistoryRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TicketHistory(nil), r.entries[ticketID]...), nil
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MessageRepository stores ticket messages in memory.
type MessageRepository struct {
	mu       sync.RWMutex
	messages map[string][]domain.TicketMessage
}

// NewMessageRepository builds an empty store.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{messages: make(map[string][]domain.TicketMessage)}
}

// Create implements repository.TicketMessageRepository.
func (r *MessageRepository) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.TicketID] = append(r.messages[msg.TicketID], *msg)
	return nil
}

// ListByTicket implements repository.TicketMessageRepository.
func (r *MessageRepository) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TicketMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TicketMessage, 0, len(r.messages[ticketID]))
	for _, msg := range r.messages[ticketID] {
		if !includeInternal && msg.MessageType == domain.MessageTypeInternalNote {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// StaffRepository stores staff members in memory.
type StaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewStaffRepository builds an empty store.
func NewStaffRepository() *StaffRepository {
	return &StaffRepository{staff: make(map[string]domain.StaffMember)}
}

// Create implements repository.StaffRepository.
func (r *StaffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.staff {
		if existing.ID == staff.ID || (staff.Email != "" && existing.Email == staff.Email) {
			return repository.ErrDuplicate
		}
	}
	staff.UpdatedAt = staff.CreatedAt
	r.staff[staff.ID] = *staff
	return nil
}

// GetByID implements repository.StaffRepository.
func (r *StaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	staff, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &staff, nil
}

// List implements repository.StaffRepository.
func (r *StaffRepository) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	r.mu.RLock()
	var result []domain.StaffMember
	for _, staff := range r.staff {
		if filter.Role != nil && staff.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && staff.Active != *filter.Active {
			continue
		}
		result = append(result, staff)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset, 50), nil
}

// WorkflowRepository stores workflows in memory.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]domain.Workflow
}

// NewWorkflowRepository builds an empty store.
func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{workflows: make(map[string]domain.Workflow)}
}

// Create implements repository.WorkflowRepository.
func (r *WorkflowRepository) Create(_ context.Context, workflow *domain.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[workflow.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *workflow
	stored.Stages = append([]domain.WorkflowStage(nil), workflow.Stages...)
	r.workflows[workflow.ID] = stored
	return nil
}

// GetByID implements repository.WorkflowRepository.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*domain.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	workflow.Stages = append([]domain.WorkflowStage(nil), workflow.Stages...)
	return &workflow, nil
}

// List implements repository.WorkflowRepository.
func (r *WorkflowRepository) List(_ context.Context) ([]domain.Workflow, error) {
	r.mu.RLock()
	result := make([]domain.Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		workflow.Stages = append([]domain.WorkflowStage(nil), workflow.Stages...)
		result = append(result, workflow)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
