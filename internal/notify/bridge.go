// Package notify turns the server's change stream into ticket refetches.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/danielolaszy/boardsync/internal/logging"
)

// ErrAlreadyStarted is returned when Start is called on a bridge that has
// already subscribed.
var ErrAlreadyStarted = errors.New("bridge already started")

// Event reports that the tickets of a project changed on the server. It is a
// hint to refetch, never authoritative data.
type Event struct {
	ProjectID string
}

// Handler receives change events.
type Handler func(Event)

// Subscriber delivers change events to handle until ctx is cancelled.
// Delivery is at-least-once and events may be lost.
type Subscriber interface {
	Subscribe(ctx context.Context, handle Handler) error
}

// Bridge owns one long-lived subscription. The handler it invokes lives in a
// separate slot and can be swapped at any time without reconnecting.
type Bridge struct {
	sub      Subscriber
	callback atomic.Pointer[Handler]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewBridge creates a bridge that will subscribe through sub.
func NewBridge(sub Subscriber) *Bridge {
	return &Bridge{sub: sub}
}

// SetCallback replaces the handler invoked for each event. A nil fn drops
// events until a handler is set again.
func (b *Bridge) SetCallback(fn Handler) {
	if fn == nil {
		b.callback.Store(nil)
		return
	}
	b.callback.Store(&fn)
}

// Start subscribes in the background. A bridge subscribes at most once in
// its lifetime.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done

	go func() {
		defer close(done)

		logging.Debug("starting change subscription")
		err := b.sub.Subscribe(ctx, b.dispatch)
		if err != nil {
			logging.Error("change subscription ended", "error", err)
		}

		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
	}()

	return nil
}

// Stop cancels the subscription, waits for it to end and returns the error
// it ended with, if any.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done

	return b.Err()
}

// Done returns a channel closed when the subscription ends, or nil before
// Start.
func (b *Bridge) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Err returns the error the subscription ended with.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Bridge) dispatch(ev Event) {
	fn := b.callback.Load()
	if fn == nil {
		logging.Debug("dropping change event, no handler", "project_id", ev.ProjectID)
		return
	}
	(*fn)(ev)
}

// Refresher is the part of the ticket store a change event drives.
type Refresher interface {
	ProjectID() string
	Fetch(ctx context.Context, projectID string) error
}

// RefreshOnChange returns a handler that refetches r when an event names its
// active project. Events for other projects are ignored.
func RefreshOnChange(ctx context.Context, r Refresher) Handler {
	return func(ev Event) {
		active := r.ProjectID()
		if active == "" || ev.ProjectID != active {
			return
		}

		logging.Debug("project changed on server, refetching", "project_id", active)
		if err := r.Fetch(ctx, active); err != nil {
			logging.Warn("failed to refetch changed project", "project_id", active, "error", err)
		}
	}
}
