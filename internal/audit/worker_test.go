package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelStore(t *testing.T) {
	t.Run("worker drains queued events into the durable store", func(t *testing.T) {
		durable := NewInMemoryStore()
		queue := NewChannelStore(durable, 8)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = queue.Worker().Run(ctx)
		}()

		now := time.Now()
		for i := 0; i < 3; i++ {
			require.NoError(t, queue.Append(context.Background(), Event{
				ID:         NewEventID(now),
				Kind:       KindVerificationSuccess,
				ExternalID: "chat-1",
				Timestamp:  now,
			}))
		}

		require.Eventually(t, func() bool {
			events, err := durable.ListByExternalID(context.Background(), "chat-1")
			return err == nil && len(events) == 3
		}, time.Second, 10*time.Millisecond)

		cancel()
		<-done
	})

	t.Run("queued events survive shutdown", func(t *testing.T) {
		durable := NewInMemoryStore()
		queue := NewChannelStore(durable, 8)

		require.NoError(t, queue.Append(context.Background(), Event{
			ID:         NewEventID(time.Now()),
			Kind:       KindQueryAnswered,
			ExternalID: "chat-2",
		}))

		// Start the worker with an already-cancelled context: Run must still
		// flush what was queued before returning.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := queue.Worker().Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)

		events, err := durable.ListByExternalID(context.Background(), "chat-2")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("a saturated queue rejects instead of blocking", func(t *testing.T) {
		queue := NewChannelStore(NewInMemoryStore(), 1)

		require.NoError(t, queue.Append(context.Background(), Event{ID: "a"}))
		err := queue.Append(context.Background(), Event{ID: "b"})
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("reads pass through to the durable store", func(t *testing.T) {
		durable := NewInMemoryStore()
		require.NoError(t, durable.Append(context.Background(), Event{ID: "x", ExternalID: "chat-3"}))

		queue := NewChannelStore(durable, 1)
		events, err := queue.ListByExternalID(context.Background(), "chat-3")
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
