// internal/hub/client.go
package hub

import (
	"sync"
	"time"
)

// sendBufferSize is the per-client outbound queue depth. A client that
// falls this far behind a broadcast is disconnected rather than allowed
// to stall delivery to everyone else.
const sendBufferSize = 256

// Client represents a single connected observer. The Send channel is the
// only path to the client's transport; the websocket write pump drains it,
// which serializes frames per connection. Send is never closed — the write
// pump is told to stop through Done instead, so a broadcast racing with a
// disconnect cannot send on a closed channel.
type Client struct {
	ID          string      `json:"id"`
	Send        chan []byte `json:"-"`
	UserAgent   string      `json:"user_agent"`
	RemoteAddr  string      `json:"remote_addr"`
	ConnectedAt time.Time   `json:"connected_at"`

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client with a buffered send queue
func NewClient(id, userAgent, remoteAddr string) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan []byte, sendBufferSize),
		UserAgent:   userAgent,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// Done is closed when the client has been unregistered
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close signals the write pump to stop. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Message is a control or notification frame exchanged with observers.
// Fields beyond Type are populated per message type and omitted otherwise.
type Message struct {
	Type     string   `json:"type"`
	ClientID string   `json:"client_id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Count    int      `json:"count,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`
}

// Well-known broadcast channels and message types
const (
	ChannelEvents    = "events"
	ChannelDevices   = "devices"
	ChannelTelemetry = "telemetry"

	TypeConnected           = "connected"
	TypeSubscribe           = "subscribe"
	TypeSubscribed          = "subscribed"
	TypeUnsubscribe         = "unsubscribe"
	TypeUnsubscribed        = "unsubscribed"
	TypePing                = "ping"
	TypePong                = "pong"
	TypeEventsUpdated       = "events_updated"
	TypeDeviceStatusUpdated = "device_status_updated"
	TypeTelemetryUpdated    = "telemetry_updated"
)
