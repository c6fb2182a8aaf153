package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every subscriber", func(t *testing.T) {
		b := NewBroadcast()
		defer b.Close()

		first, cancelFirst := b.Subscribe(4)
		defer cancelFirst()
		second, cancelSecond := b.Subscribe(4)
		defer cancelSecond()

		ev := Event{Kind: "work_order", Change: ChangeCreated, EntityID: "wo-1"}
		b.Publish(ctx, ev)

		require.Equal(t, ev, <-first)
		require.Equal(t, ev, <-second)
	})

	t.Run("full buffer drops for that subscriber only", func(t *testing.T) {
		b := NewBroadcast()
		defer b.Close()

		tiny, cancelTiny := b.Subscribe(1)
		defer cancelTiny()
		roomy, cancelRoomy := b.Subscribe(4)
		defer cancelRoomy()

		b.Publish(ctx, Event{Change: ChangeCreated, EntityID: "wo-1"})
		b.Publish(ctx, Event{Change: ChangeUpdated, EntityID: "wo-1"})

		require.Len(t, roomy, 2)
		require.Len(t, tiny, 1)
		require.Equal(t, ChangeCreated, (<-tiny).Change)
	})

	t.Run("cancel closes the channel", func(t *testing.T) {
		b := NewBroadcast()
		defer b.Close()

		events, cancel := b.Subscribe(1)
		cancel()
		cancel() // idempotent

		_, open := <-events
		require.False(t, open)

		// Publishing after cancel must not panic.
		b.Publish(ctx, Event{Change: ChangeUpdated, EntityID: "wo-1"})
	})

	t.Run("close closes all subscribers and silences publish", func(t *testing.T) {
		b := NewBroadcast()
		events, _ := b.Subscribe(1)

		b.Close()
		b.Close() // idempotent

		_, open := <-events
		require.False(t, open)

		b.Publish(ctx, Event{Change: ChangeDeleted, EntityID: "wo-1"})
	})
}

func TestNop(t *testing.T) {
	Nop{}.Publish(context.Background(), Event{Change: ChangeCreated, EntityID: "wo-1"})
}
