package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// NotificationWorker drains the notification queue and POSTs each event as
// JSON to the configured webhook. Delivery goes through a circuit breaker so
// a dead endpoint is skipped instead of stalling the queue.
type NotificationWorker struct {
	queue   <-chan events.Event
	url     string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Metrics

	wg sync.WaitGroup
}

// NewNotificationWorker builds a worker for queue.
func NewNotificationWorker(queue <-chan events.Event, cfg config.NotificationConfig, logger *zap.Logger, metrics *observability.Metrics) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &NotificationWorker{
		queue:   queue,
		url:     cfg.WebhookURL,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return w
}

// Start consumes the queue until ctx is cancelled or the queue is closed.
func (w *NotificationWorker) Start(ctx context.Context) {
	if w == nil || w.queue == nil || w.url == "" {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.queue:
				if !ok {
					return
				}
				w.handle(event)
			}
		}
	}()
}

// Wait blocks until the consumer goroutine exits.
func (w *NotificationWorker) Wait() {
	if w == nil {
		return
	}
	w.wg.Wait()
}

func (w *NotificationWorker) handle(event events.Event) {
	if err := w.Deliver(event); err != nil {
		result := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "short_circuited"
		}
		w.metrics.RecordNotification(result)
		w.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return
	}
	w.metrics.RecordNotification("delivered")
}

// Deliver sends one event synchronously.
func (w *NotificationWorker) Deliver(event events.Event) error {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		agent := fiber.Post(w.url).JSON(event).Timeout(w.timeout)
		status, body, errs := agent.Bytes()
		if len(errs) > 0 {
			return nil, errs[0]
		}
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			return nil, fmt.Errorf("webhook responded %d: %s", status, truncate(body, 200))
		}
		return nil, nil
	})
	return err
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}
