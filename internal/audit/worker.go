package audit

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by the channel store when the inbox is saturated.
// The publisher logs and drops; audit is best-effort by design of the
// user-facing path.
var ErrQueueFull = errors.New("audit: queue full")

// ChannelStore is a Store whose Append only enqueues. Pair it with a Worker
// draining the same channel into a durable store so emitters never block on
// the database.
type ChannelStore struct {
	durable Store
	inbox   chan Event
}

// NewChannelStore builds the queue in front of the durable store.
func NewChannelStore(durable Store, buffer int) *ChannelStore {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelStore{
		durable: durable,
		inbox:   make(chan Event, buffer),
	}
}

func (s *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// ListByExternalID reads through to the durable store.
func (s *ChannelStore) ListByExternalID(ctx context.Context, externalID string) ([]Event, error) {
	return s.durable.ListByExternalID(ctx, externalID)
}

// Worker drains the queue into the durable store.
func (s *ChannelStore) Worker() *Worker {
	return &Worker{store: s.durable, inbox: s.inbox}
}

// Worker consumes audit events from a channel and persists them. A failing
// append is retried on the next event at worst; it never stops the drain.
type Worker struct {
	store  Store
	inbox  <-chan Event
	OnDrop func(Event, error)
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run drains until the context ends, then flushes whatever is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil && w.OnDrop != nil {
		w.OnDrop(event, err)
	}
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.inbox:
			w.append(context.Background(), event)
		default:
			return
		}
	}
}
