package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

type capturePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (c *capturePublisher) Publish(ctx context.Context, routingKey string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	c.keys = append(c.keys, routingKey)
	return c.err
}

func TestForwardUsesEventTypeAsRoutingKey(t *testing.T) {
	pub := &capturePublisher{}
	d := events.NewInMemoryDispatcher(nil)
	events.SubscribeAll(d, Forward(pub, time.Second))

	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventSLABreach, TicketID: "t1"}))
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t1"}))

	assert.Equal(t, []string{"sla.breach", "ticket.created"}, pub.keys)
}

func TestForwardErrorDoesNotReachPublisher(t *testing.T) {
	pub := &capturePublisher{err: errors.New("channel closed")}
	d := events.NewInMemoryDispatcher(nil)
	d.Subscribe(events.EventSLAWarning, Forward(pub, time.Second))

	assert.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventSLAWarning}))
}

func TestForwardNilPublisher(t *testing.T) {
	handler := Forward(nil, time.Second)
	assert.NoError(t, handler(context.Background(), events.Event{Type: events.EventSLAWarning}))
}
