package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestNotificationQueueDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		WebhookURL: "http://hooks.invalid/helpdesk",
		QueueSize:  1,
	}, nil)
	svc.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e1", Type: events.EventSLABreach, TicketID: "t1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e2", Type: events.EventSLAWarning, TicketID: "t1"}))

	require.Len(t, svc.Queue(), 1)
	queued := <-svc.Queue()
	assert.Equal(t, "e1", queued.ID)

	dropped := logs.FilterMessage("notification queue full, dropping event").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "e2", dropped[0].ContextMap()["event_id"])
}

func TestNotificationWithoutWebhookDoesNotQueue(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(dispatcher, nil, config.NotificationConfig{QueueSize: 4}, nil)
	svc.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketCreated}))
	assert.Empty(t, svc.Queue())
}
