package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// SLAPolicyRepository stores SLA policies in memory.
type SLAPolicyRepository struct {
	mu       sync.RWMutex
	policies map[string]domain.SLAPolicy
}

// NewSLAPolicyRepository builds an empty store.
func NewSLAPolicyRepository() *SLAPolicyRepository {
	return &SLAPolicyRepository{policies: make(map[string]domain.SLAPolicy)}
}

// Create implements repository.SLAPolicyRepository.
func (r *SLAPolicyRepository) Create(_ context.Context, policy *domain.SLAPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[policy.ID]; ok {
		return repository.ErrDuplicate
	}
	r.policies[policy.ID] = *policy
	return nil
}

// GetByID implements repository.SLAPolicyRepository.
func (r *SLAPolicyRepository) GetByID(_ context.Context, id string) (*domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	policy, ok := r.policies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &policy, nil
}

// List implements repository.SLAPolicyRepository.
func (r *SLAPolicyRepository) List(_ context.Context, activeOnly bool) ([]domain.SLAPolicy, error) {
	r.mu.RLock()
	var out []domain.SLAPolicy
	for _, policy := range r.policies {
		if activeOnly && !policy.IsActive {
			continue
		}
		out = append(out, policy)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SLAMetricRepository stores SLA metrics in memory.
type SLAMetricRepository struct {
	mu      sync.RWMutex
	metrics map[string]*domain.SLAMetric
}

// NewSLAMetricRepository builds an empty store.
func NewSLAMetricRepository() *SLAMetricRepository {
	return &SLAMetricRepository{metrics: make(map[string]*domain.SLAMetric)}
}

// GetOrCreate implements repository.SLAMetricRepository.
func (r *SLAMetricRepository) GetOrCreate(_ context.Context, metric *domain.SLAMetric) (*domain.SLAMetric, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.metrics {
		if existing.TicketID == metric.TicketID && existing.PolicyID == metric.PolicyID {
			return existing.Clone(), false, nil
		}
	}
	stored := metric.Clone()
	stored.Version = 1
	stored.UpdatedAt = stored.CreatedAt
	r.metrics[stored.ID] = stored
	return stored.Clone(), true, nil
}

// GetByTicket implements repository.SLAMetricRepository.
func (r *SLAMetricRepository) GetByTicket(_ context.Context, ticketID string) (*domain.SLAMetric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.SLAMetric
	for _, metric := range r.metrics {
		if metric.TicketID != ticketID {
			continue
		}
		if latest == nil || preferMetric(latest, metric) {
			latest = metric
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest.Clone(), nil
}

// preferMetric reports whether b is the ticket's current metric ahead of a:
// open metrics first, then the newest, then the most recently finalized.
func preferMetric(a, b *domain.SLAMetric) bool {
	if a.Finalized() != b.Finalized() {
		return !b.Finalized()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return b.CreatedAt.After(a.CreatedAt)
	}
	if a.FinalizedAt != nil && !a.FinalizedAt.Equal(*b.FinalizedAt) {
		return b.FinalizedAt.After(*a.FinalizedAt)
	}
	return b.ID > a.ID
}

// Update implements repository.SLAMetricRepository.
func (r *SLAMetricRepository) Update(_ context.Context, metric *domain.SLAMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.metrics[metric.ID]
	if !ok || current.Version != metric.Version {
		return repository.ErrVersionConflict
	}
	metric.Version++
	r.metrics[metric.ID] = metric.Clone()
	return nil
}

// ListActive implements repository.SLAMetricRepository.
func (r *SLAMetricRepository) ListActive(_ context.Context, afterID string, limit int) ([]domain.SLAMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	var out []domain.SLAMetric
	for id, metric := range r.metrics {
		if metric.Finalized() || id <= afterID {
			continue
		}
		out = append(out, *metric.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SLABreachRepository stores breaches in memory. The (metric, type) pair is
// unique.
type SLABreachRepository struct {
	mu       sync.RWMutex
	breaches map[string]domain.SLABreach
}

// NewSLABreachRepository builds an empty store.
func NewSLABreachRepository() *SLABreachRepository {
	return &SLABreachRepository{breaches: make(map[string]domain.SLABreach)}
}

// Create implements repository.SLABreachRepository.
func (r *SLABreachRepository) Create(_ context.Context, breach *domain.SLABreach) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.breaches {
		if existing.MetricID == breach.MetricID && existing.BreachType == breach.BreachType {
			return repository.ErrBreachExists
		}
	}
	r.breaches[breach.ID] = *breach
	return nil
}

// Find implements repository.SLABreachRepository.
func (r *SLABreachRepository) Find(_ context.Context, metricID string, breachType domain.BreachType) (*domain.SLABreach, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, breach := range r.breaches {
		if breach.MetricID == metricID && breach.BreachType == breachType {
			return &breach, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetByID implements repository.SLABreachRepository.
func (r *SLABreachRepository) GetByID(_ context.Context, id string) (*domain.SLABreach, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	breach, ok := r.breaches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &breach, nil
}

// Update implements repository.SLABreachRepository. Only acknowledgment
// fields are written.
func (r *SLABreachRepository) Update(_ context.Context, breach *domain.SLABreach) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.breaches[breach.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Status = breach.Status
	current.AcknowledgedAt = breach.AcknowledgedAt
	current.AcknowledgedBy = breach.AcknowledgedBy
	current.ResolutionNotes = breach.ResolutionNotes
	r.breaches[breach.ID] = current
	return nil
}

// List implements repository.SLABreachRepository.
func (r *SLABreachRepository) List(_ context.Context, filter repository.BreachFilter) ([]domain.SLABreach, error) {
	r.mu.RLock()
	var out []domain.SLABreach
	for _, breach := range r.breaches {
		if filter.TicketID != nil && breach.TicketID != *filter.TicketID {
			continue
		}
		if filter.MetricID != nil && breach.MetricID != *filter.MetricID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, breach.Status) {
			continue
		}
		out = append(out, breach)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset, 50), nil
}
