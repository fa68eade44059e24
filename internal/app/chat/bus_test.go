package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func runBus(t *testing.T) *Bus {
	t.Helper()
	b := NewBus(0, zerolog.Nop())
	go b.Run()
	t.Cleanup(b.Stop)
	return b
}

func TestBus_DeliversInPublishAndRegistrationOrder(t *testing.T) {
	b := runBus(t)

	var order []string
	b.Subscribe(EventNewMessage, func(evt Event) { order = append(order, "a:"+evt.Payload.(string)) })
	b.Subscribe(EventNewMessage, func(evt Event) { order = append(order, "b:"+evt.Payload.(string)) })

	require.True(t, b.Publish(EventNewMessage, "1"))
	require.True(t, b.Publish(EventNewMessage, "2"))
	require.True(t, b.Flush())

	require.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, order)
}

func TestBus_OnlyMatchingTypeIsDelivered(t *testing.T) {
	b := runBus(t)

	rec := &recorder{}
	b.Subscribe(EventConnect, rec.handle)

	b.Publish(EventNewMessage, Message{ID: "m1"})
	b.Publish(EventConnect, ConnectPayload{UserID: "u1"})
	require.True(t, b.Flush())

	require.Equal(t, []EventType{EventConnect}, rec.types())
}

func TestBus_Unsubscribe(t *testing.T) {
	b := runBus(t)

	first, second := &recorder{}, &recorder{}
	sub := b.Subscribe(EventNewMessage, first.handle)
	b.Subscribe(EventNewMessage, second.handle)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(Subscription{id: 999, eventType: EventConnect})

	b.Publish(EventNewMessage, Message{ID: "m1"})
	require.True(t, b.Flush())

	require.Zero(t, first.len())
	require.Equal(t, 1, second.len())
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := runBus(t)

	rec := &recorder{}
	b.Subscribe(EventNewMessage, func(Event) { panic("boom") })
	b.Subscribe(EventNewMessage, rec.handle)

	b.Publish(EventNewMessage, Message{ID: "m1"})
	b.Publish(EventNewMessage, Message{ID: "m2"})
	require.True(t, b.Flush())

	require.Equal(t, 2, rec.len())
}

func TestBus_PublishAfterStop(t *testing.T) {
	b := NewBus(1, zerolog.Nop())
	go b.Run()

	b.Stop()
	b.Stop()
	<-b.Done()

	require.False(t, b.Publish(EventConnect, nil))
	require.False(t, b.TryPublish(EventConnect, nil))
	require.False(t, b.Flush())
}

func TestBus_TryPublishDropsWhenFull(t *testing.T) {
	b := NewBus(1, zerolog.Nop())

	require.True(t, b.TryPublish(EventNewMessage, Message{ID: "m1"}))
	require.False(t, b.TryPublish(EventNewMessage, Message{ID: "m2"}))

	rec := &recorder{}
	b.Subscribe(EventNewMessage, rec.handle)
	go b.Run()
	t.Cleanup(b.Stop)

	require.True(t, b.Flush())
	require.Equal(t, "m1", rec.messages()[0].ID)
	require.Equal(t, 1, rec.len())
}
