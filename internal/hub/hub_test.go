// internal/hub/hub_test.go
package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newConnectedClient(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	client := NewClient(id, "test-agent", "127.0.0.1:1234")
	h.Register(client)
	return client
}

func receiveMessage(t *testing.T, client *Client) *Message {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	default:
		t.Fatal("expected a message in the send queue")
		return nil
	}
}

func assertNoMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

func TestBroadcastDeliversToSubscribersOnly(t *testing.T) {
	h := New(zap.NewNop())
	subscribed := newConnectedClient(t, h, "client-1")
	other := newConnectedClient(t, h, "client-2")

	h.Subscribe(subscribed.ID, []string{ChannelEvents})

	h.Broadcast(ChannelEvents, &Message{Type: TypeEventsUpdated, Count: 3})

	msg := receiveMessage(t, subscribed)
	assert.Equal(t, TypeEventsUpdated, msg.Type)
	assert.Equal(t, 3, msg.Count)

	assertNoMessage(t, other)
}

func TestBroadcastDeliversExactlyOnce(t *testing.T) {
	h := New(zap.NewNop())
	client := newConnectedClient(t, h, "client-1")

	// Subscribing twice to the same channel must not double deliveries.
	h.Subscribe(client.ID, []string{ChannelEvents, ChannelDevices})
	h.Subscribe(client.ID, []string{ChannelEvents})

	h.Broadcast(ChannelEvents, &Message{Type: TypeEventsUpdated, Count: 1})

	receiveMessage(t, client)
	assertNoMessage(t, client)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New(zap.NewNop())
	client := newConnectedClient(t, h, "client-1")

	h.Subscribe(client.ID, []string{ChannelEvents, ChannelDevices})
	h.Unsubscribe(client.ID, []string{ChannelEvents})

	h.Broadcast(ChannelEvents, &Message{Type: TypeEventsUpdated, Count: 1})
	assertNoMessage(t, client)

	// The other subscription is untouched.
	h.Broadcast(ChannelDevices, &Message{Type: TypeDeviceStatusUpdated})
	msg := receiveMessage(t, client)
	assert.Equal(t, TypeDeviceStatusUpdated, msg.Type)
}

func TestUnregisterRemovesFromAllChannels(t *testing.T) {
	h := New(zap.NewNop())
	client := newConnectedClient(t, h, "client-1")
	h.Subscribe(client.ID, []string{ChannelEvents, ChannelDevices})

	h.Unregister(client.ID)

	stats := h.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Equal(t, 0, stats.ChannelSubscribers[ChannelEvents])
	assert.Equal(t, 0, stats.ChannelSubscribers[ChannelDevices])

	select {
	case <-client.Done():
	default:
		t.Fatal("expected done channel to be closed after unregister")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := New(zap.NewNop())
	client := newConnectedClient(t, h, "client-1")

	h.Unregister(client.ID)
	h.Unregister(client.ID)
	h.Unregister("never-registered")
}

func TestSendToUnknownClientIsNoOp(t *testing.T) {
	h := New(zap.NewNop())
	h.SendTo("ghost", &Message{Type: TypePong})
}

func TestSubscribeUnknownClientIsNoOp(t *testing.T) {
	h := New(zap.NewNop())
	h.Subscribe("ghost", []string{ChannelEvents})

	assert.Equal(t, 0, h.Stats().ChannelSubscribers[ChannelEvents])
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	h := New(zap.NewNop())
	client := newConnectedClient(t, h, "client-1")
	h.Subscribe(client.ID, []string{ChannelEvents})

	// Fill the send queue without draining it, then overflow it.
	for i := 0; i < sendBufferSize+1; i++ {
		h.Broadcast(ChannelEvents, &Message{Type: TypeEventsUpdated, Count: i})
	}

	assert.Equal(t, 0, h.Stats().TotalConnections)
	select {
	case <-client.Done():
	default:
		t.Fatal("expected slow client to be closed")
	}
}

func TestBroadcastAll(t *testing.T) {
	h := New(zap.NewNop())
	first := newConnectedClient(t, h, "client-1")
	second := newConnectedClient(t, h, "client-2")

	h.BroadcastAll(&Message{Type: TypeDeviceStatusUpdated})

	assert.Equal(t, TypeDeviceStatusUpdated, receiveMessage(t, first).Type)
	assert.Equal(t, TypeDeviceStatusUpdated, receiveMessage(t, second).Type)
}
