package worker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestNotificationWorkerPostsQueuedEvents(t *testing.T) {
	var received atomic.Int32
	var lastType atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event events.Event
		if err := json.Unmarshal(body, &event); err == nil {
			lastType.Store(string(event.Type))
		}
		received.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	queue := make(chan events.Event, 2)
	worker := NewNotificationWorker(queue, config.NotificationConfig{
		WebhookURL:     server.URL,
		WebhookTimeout: 2 * time.Second,
	}, nil, nil)

	queue <- events.Event{ID: "e1", Type: events.EventSLABreach, TicketID: "t1"}
	close(queue)
	worker.Start(context.Background())
	worker.Wait()

	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, string(events.EventSLABreach), lastType.Load())
}

func TestNotificationWorkerBreakerOpensAfterFailures(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	worker := NewNotificationWorker(nil, config.NotificationConfig{WebhookURL: server.URL}, nil, nil)
	event := events.Event{ID: "e1", Type: events.EventSLAWarning}
	for i := 0; i < 5; i++ {
		err := worker.Deliver(event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	}

	err := worker.Deliver(event)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), received.Load())
}

func TestNotificationWorkerDisabledWithoutURL(t *testing.T) {
	queue := make(chan events.Event, 1)
	worker := NewNotificationWorker(queue, config.NotificationConfig{}, nil, nil)
	worker.Start(context.Background())
	worker.Wait()
	assert.Len(t, queue, 0)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte("abc"), 5))
	assert.Equal(t, "ab", truncate([]byte("abc"), 2))
}
