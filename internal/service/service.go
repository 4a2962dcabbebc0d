package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Actor identifies who invokes a service operation.
type Actor struct {
	Type domain.ActorType
	ID   string
	Role domain.StaffRole
}

// StaffActor builds an actor for a staff member.
func StaffActor(id string, role domain.StaffRole) Actor {
	return Actor{Type: domain.ActorTypeStaff, ID: id, Role: role}
}

// UserActor builds an actor for a requester.
func UserActor(id string) Actor {
	return Actor{Type: domain.ActorTypeUser, ID: id}
}

// SystemActor is used by automation and the SLA sweeper.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

func (a Actor) idPtr() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) event() events.Actor {
	out := events.Actor{Type: a.Type}
	if out.Type == "" {
		out.Type = domain.ActorTypeSystem
	}
	switch a.Type {
	case domain.ActorTypeStaff:
		out.StaffID = a.idPtr()
	case domain.ActorTypeUser:
		out.UserID = a.idPtr()
	}
	return out
}

func (a Actor) historyType() domain.ActorType {
	if a.Type == "" {
		return domain.ActorTypeSystem
	}
	return a.Type
}

// historyEntry builds the audit row written together with a ticket change.
func (a Actor) historyEntry(ticketID string, action domain.TicketAction, comment string, oldValue, newValue map[string]any, now time.Time) *domain.TicketHistory {
	return &domain.TicketHistory{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		ActorType: a.historyType(),
		ActorID:   a.idPtr(),
		Action:    action,
		Comment:   comment,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: now,
	}
}

// KeyedMutex serializes work per key, for example per ticket id. Entries are
// released once no goroutine holds or waits for the key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex builds an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires key and returns its release function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// mapRepoError converts repository sentinels into domain errors.
func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently", details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return apperrors.MapError(err)
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, now time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	_ = dispatcher.Publish(ctx, event)
}

func generateTicketNumber() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

func ptrBool(v bool) *bool {
	return &v
}
