package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

const defaultNotificationQueueSize = 256

// NotificationService handles emitting notifications for domain events. It
// never blocks the publisher: events are queued for the delivery worker and
// dropped when the queue is full.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	metrics    *observability.Metrics
	queue      chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, metrics *observability.Metrics) *NotificationService {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultNotificationQueueSize
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     nopIfNil(logger),
		cfg:        cfg,
		metrics:    metrics,
		queue:      make(chan events.Event, size),
	}
}

// RegisterHandlers subscribes to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.handleEvent)
}

// Queue exposes pending deliveries to the notification worker.
func (n *NotificationService) Queue() <-chan events.Event {
	return n.queue
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_number", event.TicketNumber),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	switch event.Type {
	case events.EventSLABreach, events.EventSLAWarning, events.EventEscalationTriggered, events.EventAssignmentApplied:
	default:
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) enqueueWebhook(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.metrics.RecordNotification("dropped")
		n.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
}
