package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

// Event names sent on the server's stream.
const (
	EventTodoChanged = "todo_changed"
	EventPing        = "ping"
)

type changePayload struct {
	ProjectID string `json:"project_id"`
}

// SSESubscriber reads change events from the server-sent event stream and
// reconnects with exponential backoff until its context is cancelled.
type SSESubscriber struct {
	url string

	// MaxReconnectInterval caps the wait between reconnect attempts.
	MaxReconnectInterval time.Duration
}

// NewSSESubscriber creates a subscriber for the stream at url.
func NewSSESubscriber(url string) *SSESubscriber {
	return &SSESubscriber{
		url:                  url,
		MaxReconnectInterval: 30 * time.Second,
	}
}

// Subscribe blocks, delivering every todo_changed event to handle. It returns
// nil once ctx is cancelled.
func (s *SSESubscriber) Subscribe(ctx context.Context, handle Handler) error {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0
	if s.MaxReconnectInterval > 0 {
		retry.MaxInterval = s.MaxReconnectInterval
	}

	client := sse.NewClient(s.url)
	client.ReconnectStrategy = backoff.WithContext(retry, ctx)
	client.ReconnectNotify = func(err error, next time.Duration) {
		logging.Warn("event stream disconnected, reconnecting",
			"url", s.url,
			"error", err,
			"retry_in", next)
	}
	client.OnConnect(func(*sse.Client) {
		logging.Info("connected to event stream", "url", s.url)
	})

	err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if ev, ok := decodeEvent(msg); ok {
			handle(ev)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to event stream: %w", err)
	}
	return nil
}

// decodeEvent extracts a change event. Keepalives, unknown events and
// malformed payloads yield false.
func decodeEvent(msg *sse.Event) (Event, bool) {
	if msg == nil {
		return Event{}, false
	}

	switch name := string(msg.Event); name {
	case EventTodoChanged:
	case EventPing:
		return Event{}, false
	default:
		logging.Debug("ignoring stream event", "event", name)
		return Event{}, false
	}

	var payload changePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logging.Debug("dropping malformed change event",
			"data", logging.Abbreviate(string(msg.Data), 64),
			"error", err)
		return Event{}, false
	}
	if payload.ProjectID == "" {
		logging.Debug("dropping change event without project id")
		return Event{}, false
	}

	return Event{ProjectID: payload.ProjectID}, true
}
